// Package webrtc provides the pion-backed media transport used by the
// negotiation subsystem.
package webrtc

import (
	"fmt"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	pion "github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"vico_home/callcore/internal/domain"
)

// Factory creates PeerConnections sharing one configured API.
// It implements domain.TransportFactory.
type Factory struct {
	api        *pion.API
	iceServers []pion.ICEServer
	log        zerolog.Logger
}

// NewFactory registers the default codecs and the NACK/RTCP report
// interceptors. urls are STUN/TURN urls without credentials; servers carry
// credentials, e.g. from a relay ticket.
func NewFactory(urls []string, servers []domain.ICEServer, logger zerolog.Logger) (*Factory, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}

	var ice []pion.ICEServer
	if len(urls) > 0 {
		ice = append(ice, pion.ICEServer{URLs: urls})
	}
	for _, s := range servers {
		ice = append(ice, pion.ICEServer{
			URLs:       []string{s.URL},
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	return &Factory{
		api:        api,
		iceServers: ice,
		log:        logger.With().Str("component", "webrtc").Logger(),
	}, nil
}

// NewTransport creates a PeerConnection for a call of the given kind.
func (f *Factory) NewTransport(kind domain.MediaKind) (domain.Transport, error) {
	pc, err := f.api.NewPeerConnection(pion.Configuration{
		ICEServers:   f.iceServers,
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return newPeer(pc, kind, f.log), nil
}

// Probe reports whether a media transport can be created on this runtime.
// A non-nil error selects signaling-only mode.
func Probe() error {
	api, err := newAPI()
	if err != nil {
		return err
	}
	pc, err := api.NewPeerConnection(pion.Configuration{})
	if err != nil {
		return fmt.Errorf("probe peer connection: %w", err)
	}
	return pc.Close()
}

func newAPI() (*pion.API, error) {
	m := &pion.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	i := &interceptor.Registry{}
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack responder: %w", err)
	}
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return nil, fmt.Errorf("create nack generator: %w", err)
	}
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack"}, pion.RTPCodecTypeVideo)
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack", Parameter: "pli"}, pion.RTPCodecTypeVideo)
	i.Add(responder)
	i.Add(generator)
	if err := pion.ConfigureRTCPReports(i); err != nil {
		return nil, fmt.Errorf("configure rtcp reports: %w", err)
	}

	// Relay paths can stall for a few seconds during failover.
	se := pion.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(se),
	), nil
}
