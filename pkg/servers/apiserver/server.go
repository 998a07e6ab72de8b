// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package apiserver implements the APISERVER session: a read-only HTTP JSON
// view of the console's targets, credentials, sessions and scan history.
package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/session"
)

const (
	TypeName = "APISERVER"

	ParamListen = "listen"

	DefaultListen = "127.0.0.1:0"
)

var (
	// ErrUnsupportedHost is returned when the session host cannot be viewed.
	ErrUnsupportedHost = errors.New("host does not expose a console view")

	// ErrAlreadyRunning is returned by Start while the listener is up.
	ErrAlreadyRunning = errors.New("api server already running")

	// ErrNotRunning is returned by Addr before Start.
	ErrNotRunning = errors.New("api server not running")
)

// Console is the part of the host the API exposes.
type Console interface {
	Targets() []host.TargetEntry
	Credentials() []host.CredentialEntry
	Sessions() []host.SessionEntry
	History() history.Store
}

// Server is the APISERVER session.
type Server struct {
	*session.Base

	console Console

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	done chan struct{}
}

// New is the session factory for APISERVER.
func New(_ context.Context, env session.Env) (session.Session, error) {
	console, ok := env.Host.(Console)
	if !ok {
		return nil, ErrUnsupportedHost
	}
	defaults := params.NewCollection(
		params.New(ParamListen, params.KindString, "Listen address", DefaultListen),
	)
	base, err := session.NewBase(env, session.Server, TypeName, defaults, false)
	if err != nil {
		return nil, err
	}
	s := &Server{Base: base, console: console}
	base.Commands().MustRegister(s.commands()...)
	return s, nil
}

// Register declares APISERVER in r.
func Register(r *session.Registry) error {
	return r.Register(session.Server, TypeName, New, "Read-only HTTP API over the console state")
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return "", ErrAlreadyRunning
	}

	listen := s.Params().String(ParamListen)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", listen, err)
	}

	srv := &http.Server{
		Handler:           NewRouter(s.console),
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger().Error().Err(err).Msg("api server stopped")
		}
	}()
	s.srv, s.ln, s.done = srv, ln, done

	addr := ln.Addr().String()
	s.Logger().Info().Str("addr", addr).Msg("api server listening")
	s.Print(ctx, "API server listening on http://%s", addr)
	return addr, nil
}

// Stop shuts the server down. It returns nil when not running.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv, s.ln, s.done = nil, nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(sctx)
	<-done
	return err
}

// Addr returns the bound listen address.
func (s *Server) Addr() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return "", ErrNotRunning
	}
	return s.ln.Addr().String(), nil
}

// Close stops the server.
func (s *Server) Close(ctx context.Context) error {
	return s.Stop(ctx)
}

func (s *Server) commands() []*session.Command {
	return []*session.Command{
		{
			Name: "start", Help: "Start serving the API", Group: "SERVER",
			Handler: func(ctx context.Context, args []string) (any, error) {
				return s.Start(ctx)
			},
		},
		{
			Name: "stop", Help: "Stop serving the API", Group: "SERVER",
			Handler: func(ctx context.Context, args []string) (any, error) {
				if err := s.Stop(ctx); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			Name: "addr", Help: "Show the listen address", Group: "SERVER",
			Handler: func(ctx context.Context, args []string) (any, error) {
				return s.Addr()
			},
		},
	}
}
