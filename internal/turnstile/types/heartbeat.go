package types

type HeartbeatRequest struct {
	Sequence        uint64 `json:"seq,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	ReaderModel     string `json:"reader_model,omitempty"`
	UptimeSeconds   uint64 `json:"uptime_s,omitempty"`
	IP              string `json:"ip,omitempty"`
}

type HeartbeatResponse struct {
	OK         bool   `json:"ok"`
	TerminalID string `json:"terminal_id"`
	ServerTime string `json:"server_time"`
}
