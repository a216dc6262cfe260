package repos_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/nbrennan/huesic/internal/models"
	"github.com/nbrennan/huesic/internal/repos"
)

func newTestRepo(t *testing.T) *repos.StateRepo {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	repo, err := repos.NewStateRepo(logger, db)
	if err != nil {
		t.Fatal(err)
	}
	return repo
}

func Test_Credentials(t *testing.T) {

	t.Run("round-trips the bridge credential", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveBridgeCredential("app-key-1"))

		key, err := repo.LoadBridgeCredential()
		assert.NoError(t, err)
		assert.Equal(t, "app-key-1", key)
	})

	t.Run("saving again overwrites", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveBridgeCredential("old"))
		assert.NoError(t, repo.SaveBridgeCredential("new"))

		key, err := repo.LoadBridgeCredential()
		assert.NoError(t, err)
		assert.Equal(t, "new", key)
	})

	t.Run("a missing credential is empty, not an error", func(t *testing.T) {
		repo := newTestRepo(t)

		key, err := repo.LoadBridgeCredential()

		assert.NoError(t, err)
		assert.Equal(t, "", key)
	})

	t.Run("round-trips the service token blob", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveServiceToken([]byte(`{"access_token":"tok"}`)))

		token, err := repo.LoadServiceToken()
		assert.NoError(t, err)
		assert.Equal(t, []byte(`{"access_token":"tok"}`), token)
	})

	t.Run("a missing token is nil", func(t *testing.T) {
		repo := newTestRepo(t)

		token, err := repo.LoadServiceToken()

		assert.NoError(t, err)
		assert.Nil(t, token)
	})
}

func Test_Selection(t *testing.T) {

	t.Run("round-trips the selection in order", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveSelection([]string{"l3", "l1", "l2"}))

		selection, err := repo.LoadSelection()
		assert.NoError(t, err)
		assert.Equal(t, []string{"l3", "l1", "l2"}, selection)
	})

	t.Run("saving replaces the previous selection wholesale", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveSelection([]string{"l1", "l2", "l3"}))
		assert.NoError(t, repo.SaveSelection([]string{"l9"}))

		selection, err := repo.LoadSelection()
		assert.NoError(t, err)
		assert.Equal(t, []string{"l9"}, selection)
	})

	t.Run("an empty store loads an empty selection", func(t *testing.T) {
		repo := newTestRepo(t)

		selection, err := repo.LoadSelection()

		assert.NoError(t, err)
		assert.Empty(t, selection)
	})
}

func Test_Track(t *testing.T) {

	t.Run("keeps only the most recent track", func(t *testing.T) {
		repo := newTestRepo(t)

		assert.NoError(t, repo.SaveTrack(models.Track{ID: "t1", Name: "First"}))
		assert.NoError(t, repo.SaveTrack(models.Track{
			ID:         "t2",
			Name:       "Second",
			Artist:     "Band",
			Album:      "Record",
			ArtworkURL: "https://img/300",
		}))

		track, err := repo.LoadTrack()
		assert.NoError(t, err)
		assert.Equal(t, &models.Track{
			ID:         "t2",
			Name:       "Second",
			Artist:     "Band",
			Album:      "Record",
			ArtworkURL: "https://img/300",
		}, track)
	})

	t.Run("no stored track is nil, not an error", func(t *testing.T) {
		repo := newTestRepo(t)

		track, err := repo.LoadTrack()

		assert.NoError(t, err)
		assert.Nil(t, track)
	})
}
