package service

import (
	"github.com/immxrtalbeast/axenix_call/internal/config"
	"github.com/pion/webrtc/v3"
)

// ICEServers builds the ICE configuration handed to clients so both ends of
// a call negotiate against the same STUN/TURN set.
func ICEServers(cfg config.WebRTCConfig) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, 2)
	if len(cfg.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: append([]string(nil), cfg.STUNServers...)})
	}
	if len(cfg.TURN.URLs) > 0 {
		servers = append(servers, webrtc.ICEServer{
			URLs:           append([]string(nil), cfg.TURN.URLs...),
			Username:       cfg.TURN.Username,
			Credential:     cfg.TURN.Credential,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
	}
	return servers
}
