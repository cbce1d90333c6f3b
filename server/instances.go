package server

import (
	"context"
	"time"

	"github.com/jrsteele09/go-agent-chat/authflow"
	"github.com/jrsteele09/go-agent-chat/chat"
	"github.com/jrsteele09/go-agent-chat/identity"
	"github.com/jrsteele09/go-agent-chat/server/clientregistry"
	"github.com/jrsteele09/go-agent-chat/server/loginsession"
	"github.com/jrsteele09/go-agent-chat/session"
	"golang.org/x/time/rate"
)

// newInstance wires one client's gateway, publisher, controller and
// conversation. The publisher is initialised here so a client whose tokens
// are still held comes back signed in.
func (s *Server) newInstance(ctx context.Context, clientID string) (*clientregistry.Instance, error) {
	gateway := identity.NewGateway(s.deps.Provider, loginsession.NewHolder(s.deps.LoginSessions, clientID))
	publisher := session.NewPublisher(gateway)

	options := []authflow.Option{authflow.WithTransitionHook(s.metrics.RecordTransition)}
	if perMinute := s.config.GetAuthAttemptsPerMinute(); perMinute > 0 {
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		options = append(options, authflow.WithAttemptLimiter(limiter))
	}
	flows := authflow.New(gateway, s.deps.Credentials.Scope(clientID), publisher, s.config.GetVerifiedDomains(), options...)
	publisher.AddClearer(flows)

	publisher.Init(ctx)

	return &clientregistry.Instance{
		Publisher: publisher,
		Flows:     flows,
		Chat:      chat.NewConversation(s.deps.ChatBackend),
	}, nil
}
