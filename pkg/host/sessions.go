package host

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vulntor/console/pkg/arena"
	"github.com/vulntor/console/pkg/event"
	"github.com/vulntor/console/pkg/hook"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/session"
)

// SessionEntry describes a live session.
type SessionEntry struct {
	ID      string
	Type    session.Type
	Session session.Session
}

// CreateClient opens a client session of the given protocol against a
// stored target, optionally with a stored credential.
func (h *Host) CreateClient(ctx context.Context, protocol, authmethod, credID, targetID string) (string, error) {
	if _, ok := h.Target(targetID); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
	}
	overrides := params.NewCollection(params.ClientSession(strings.ToUpper(protocol), authmethod)...)
	if err := overrides.SetValue(params.Protocol, strings.ToUpper(protocol)); err != nil {
		return "", err
	}
	if authmethod != "" {
		if err := overrides.SetValue(params.AuthMethod, authmethod); err != nil {
			return "", err
		}
	}
	if err := overrides.Set(params.Target, targetID); err != nil {
		return "", err
	}
	if credID != "" {
		if _, ok := h.Credential(credID); !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownCredential, credID)
		}
		if err := overrides.Set(params.Credential, credID); err != nil {
			return "", err
		}
	}
	return h.createSession(ctx, session.Client, protocol, overrides)
}

// CreateScanner creates a scanner session.
func (h *Host) CreateScanner(ctx context.Context, scannerType string) (string, error) {
	return h.createSession(ctx, session.Scanner, scannerType, nil)
}

// CreateUtil creates a utility session.
func (h *Host) CreateUtil(ctx context.Context, utilType string) (string, error) {
	return h.createSession(ctx, session.Util, utilType, nil)
}

// CreateServer creates a server session.
func (h *Host) CreateServer(ctx context.Context, serverType string) (string, error) {
	return h.createSession(ctx, session.Server, serverType, nil)
}

func (h *Host) createSession(ctx context.Context, major session.MajorType, minor string, overrides *params.Collection) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	reg, err := h.registry.Lookup(major, minor)
	if err != nil {
		return "", err
	}

	n := h.sessions.Reserve()
	id := arena.ID(n)
	s, err := reg.Factory(ctx, session.Env{ID: id, Host: h, Params: overrides})
	if err != nil {
		h.sessions.Release(n)
		return "", fmt.Errorf("create %s session: %w", reg.Type, err)
	}

	if h.params != nil {
		if values := h.params.Values(reg.Type); len(values) > 0 {
			if skipped, err := s.Params().Load(values); err != nil {
				h.logger.Warn().Err(err).Str("type", reg.Type.String()).Msg("restore session parameters")
			} else if len(skipped) > 0 {
				h.logger.Debug().Strs("skipped", skipped).Str("type", reg.Type.String()).Msg("stale session parameters")
			}
			// Explicit arguments win over restored values.
			if err := s.Params().Merge(overrides); err != nil {
				h.logger.Warn().Err(err).Msg("reapply session arguments")
			}
		}
	}

	h.sessions.Fill(n, &sessionEntry{session: s, typ: reg.Type})
	h.logger.Debug().Str("session_id", id).Str("type", reg.Type.String()).Msg("session created")
	h.bus.Publish(ctx, event.TopicSession, SessionEntry{ID: id, Type: reg.Type, Session: s})
	h.hooks.Trigger(ctx, hook.OnSessionCreated)
	return id, nil
}

// Session returns a live session.
func (h *Host) Session(id string) (session.Session, bool) {
	e, ok := h.sessions.GetString(id)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Sessions lists live sessions in id order.
func (h *Host) Sessions() []SessionEntry {
	snap := h.sessions.Snapshot()
	out := make([]SessionEntry, 0, len(snap))
	for _, e := range snap {
		out = append(out, SessionEntry{ID: arena.ID(e.ID), Type: e.Value.typ, Session: e.Value.session})
	}
	return out
}

// CloseSession closes and forgets a session. Its id is never reissued.
func (h *Host) CloseSession(ctx context.Context, id string) error {
	e, ok := h.sessions.GetString(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	err := e.session.Close(ctx)
	if h.params != nil {
		if serr := h.saveSessionParams(ctx, e); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	n, _ := parseID(id)
	h.sessions.Remove(n)
	h.bus.Publish(ctx, event.TopicSessionEnd, SessionEntry{ID: id, Type: e.typ})
	return err
}

// Command dispatches a command on a session.
func (h *Host) Command(ctx context.Context, sessionID, name string, args ...string) (any, error) {
	s, ok := h.Session(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return s.Commands().Dispatch(ctx, name, args...)
}

// SaveParams persists the explicitly set parameters of every live session.
func (h *Host) SaveParams(ctx context.Context) error {
	if h.params == nil {
		return nil
	}
	var errs []error
	for _, e := range h.sessions.Snapshot() {
		errs = append(errs, h.saveSessionParams(ctx, e.Value))
	}
	return errors.Join(errs...)
}

// ReloadParams applies the stored parameters of t to every live session of
// that type.
func (h *Host) ReloadParams(t session.Type) {
	if h.params == nil {
		return
	}
	values := h.params.Values(t)
	if len(values) == 0 {
		return
	}
	for _, e := range h.sessions.Snapshot() {
		if e.Value.typ != t {
			continue
		}
		if _, err := e.Value.session.Params().Load(values); err != nil {
			h.logger.Warn().Err(err).Int("session_id", e.ID).Msg("reload session parameters")
		}
	}
}

func (h *Host) saveSessionParams(ctx context.Context, e *sessionEntry) error {
	raw, err := e.session.Params().MarshalYAML()
	if err != nil {
		return err
	}
	values, _ := raw.(map[string]any)
	if len(values) == 0 {
		return nil
	}
	return h.params.Save(ctx, e.typ, values)
}

func parseID(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	return n, err == nil
}
