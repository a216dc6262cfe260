package hue

type ResourceOwner struct {
	RID   string `json:"rid"`
	RType string `json:"rtype"`
}

type BridgeLight struct {
	ID       string `json:"id"`
	Metadata struct {
		Name string `json:"name"`
		Type string `json:"archetype"`
	} `json:"metadata"`
	Owner ResourceOwner `json:"owner"`
	On    struct {
		On bool `json:"on"`
	} `json:"on"`
}

type ZigbeeConnectivity struct {
	ID     string        `json:"id"`
	Owner  ResourceOwner `json:"owner"`
	Status string        `json:"status"`
}

type LightsResponse struct {
	Errors []interface{} `json:"errors"`
	Data   []BridgeLight `json:"data"`
}

type ConnectivityResponse struct {
	Errors []interface{}        `json:"errors"`
	Data   []ZigbeeConnectivity `json:"data"`
}

// v1 pairing handshake response entry
type pairingResponse struct {
	Success *struct {
		Username string `json:"username"`
	} `json:"success"`
	Error *struct {
		Type        int    `json:"type"`
		Description string `json:"description"`
	} `json:"error"`
}
