package bridge

// Conf holds the MQTT connection settings for the bridge.
type Conf struct {
	ClientID string // ClientID - unique client name for the broker.
	Schema   string // Schema - connection scheme, normally "tcp".
	Host     string // Host - MQTT server address.
	Port     string // Port - MQTT server port.
	User     string // User - login for the MQTT server.
	Password string // Password - password for the MQTT server.
	Prefix   string // Prefix - topic prefix, default "oscmix".
	Qos      byte   // Qos - quality of service for bridge traffic.
}

type setPayload struct {
	Value interface{} `json:"value"`
}

type statePayload struct {
	Value interface{} `json:"value"`
}

type meterPayload struct {
	Level float32 `json:"level"`
}
