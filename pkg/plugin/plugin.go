// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package plugin defines console plugins: named units of work that call
// into the host, and the registration plugins that add session types.
package plugin

import (
	"context"

	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/session"
)

// Plugin is a runnable console extension.
type Plugin interface {
	Name() string
	Description() string
	Run(ctx context.Context, h *host.Host) error
}

// Versioned is implemented by plugins that need a minimum host version.
type Versioned interface {
	MinHostVersion() string
}

// Func adapts a function to Plugin.
type Func struct {
	PluginName string
	Desc       string
	MinVersion string
	Fn         func(ctx context.Context, h *host.Host) error
}

func (f *Func) Name() string           { return f.PluginName }
func (f *Func) Description() string    { return f.Desc }
func (f *Func) MinHostVersion() string { return f.MinVersion }

func (f *Func) Run(ctx context.Context, h *host.Host) error {
	return f.Fn(ctx, h)
}

// SessionRegisterPlugin declares a (major, minor) session type when run.
type SessionRegisterPlugin struct {
	PluginName string
	Desc       string
	Major      session.MajorType
	Minor      string
	Factory    session.Factory
}

func (p *SessionRegisterPlugin) Name() string        { return p.PluginName }
func (p *SessionRegisterPlugin) Description() string { return p.Desc }

// Run registers the session type. A pair that is already registered fails
// with session.ErrDuplicateType.
func (p *SessionRegisterPlugin) Run(_ context.Context, h *host.Host) error {
	if err := h.Registry().Register(p.Major, p.Minor, p.Factory, p.Desc); err != nil {
		return err
	}
	h.Printf("Registered %s/%s", p.Major, p.Minor)
	return nil
}
