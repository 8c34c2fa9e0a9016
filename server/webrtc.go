package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/pion/webrtc/v4"

	"example.com/desk_bridge/pkg/session"
)

// createPeerConnection builds a peer connection with detachable data
// channels, so an accepted channel can be used as a raw byte stream.
func createPeerConnection() (*webrtc.PeerConnection, error) {
	settings := webrtc.SettingEngine{}
	settings.DetachDataChannels()

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settings))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	})
}

// handleWebRTCOffer answers an SDP offer and attaches every data
// channel the viewer opens as a session stream. The data channel is
// itself the subchannel, so the hello exchange is skipped.
func handleWebRTCOffer(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var offer webrtc.SessionDescription
		if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
			http.Error(w, "invalid SDP offer", http.StatusBadRequest)
			return
		}

		pc, err := createPeerConnection()
		if err != nil {
			log.Printf("Failed to create PeerConnection: %v", err)
			http.Error(w, "peer connection failed", http.StatusInternalServerError)
			return
		}

		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			dc.OnOpen(func() {
				raw, err := dc.Detach()
				if err != nil {
					log.Printf("Data channel detach failed: %v", err)
					return
				}
				var subchannel uint32
				if dc.ID() != nil {
					subchannel = uint32(*dc.ID())
				}
				viewer := manager.AttachDirect(&dataChannelStream{ReadWriteCloser: raw, pc: pc}, subchannel)
				log.Printf("Viewer %s attached over data channel %q", viewer.ID, dc.Label())
			})
		})

		pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
			if state == webrtc.PeerConnectionStateFailed ||
				state == webrtc.PeerConnectionStateClosed {
				pc.Close()
			}
		})

		if err := pc.SetRemoteDescription(offer); err != nil {
			log.Printf("Failed to set remote description: %v", err)
			pc.Close()
			http.Error(w, "bad offer", http.StatusBadRequest)
			return
		}

		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			log.Printf("Failed to create answer: %v", err)
			pc.Close()
			http.Error(w, "answer failed", http.StatusInternalServerError)
			return
		}

		// Gather all ICE candidates before replying so the exchange is a
		// single round trip.
		gathered := webrtc.GatheringCompletePromise(pc)
		if err := pc.SetLocalDescription(answer); err != nil {
			log.Printf("Failed to set local description: %v", err)
			pc.Close()
			http.Error(w, "answer failed", http.StatusInternalServerError)
			return
		}
		<-gathered

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pc.LocalDescription())
	}
}

// dataChannelStream wraps a detached data channel and tears down the
// owning peer connection when the stream closes.
type dataChannelStream struct {
	io.ReadWriteCloser
	pc *webrtc.PeerConnection
}

func (s *dataChannelStream) Close() error {
	err := s.ReadWriteCloser.Close()
	s.pc.Close()
	return err
}
