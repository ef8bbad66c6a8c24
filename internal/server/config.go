package server

import "time"

type Config struct {
	Addr         string
	SSLCert      string
	SSLKey       string
	UploadDir    string
	WriteTimeout time.Duration
}
