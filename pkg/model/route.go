package model

// Route maps a metric to the endpoint (host:port) of the node that owns it
type Route struct {
	Metric   string `json:"metric"`
	Endpoint string `json:"endpoint"`
}
