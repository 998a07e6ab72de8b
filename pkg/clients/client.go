// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package clients implements protocol client sessions. A client binds a
// stored target and credential to a protocol; login checks the service is
// reachable. Protocol conversations are not implemented here.
package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/target"
)

// ParamPort overrides the protocol's default port.
const ParamPort = "port"

var (
	// ErrUnknownTarget is returned when the target parameter names a missing target.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrUnknownCredential is returned when the credential parameter names a missing credential.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrUnreachable wraps dial failures during login.
	ErrUnreachable = errors.New("service unreachable")
)

// Protocol describes a client subtype.
type Protocol struct {
	Name        string
	Port        int
	AuthMethod  string
	Description string
}

// Protocols lists the built-in client subtypes.
var Protocols = []Protocol{
	{Name: "SMB", Port: 445, AuthMethod: "NTLM", Description: "SMB file sharing client"},
	{Name: "LDAP", Port: 389, AuthMethod: "NTLM", Description: "LDAP directory client"},
	{Name: "LDAPS", Port: 636, AuthMethod: "NTLM", Description: "LDAP over TLS directory client"},
	{Name: "WINRM", Port: 5985, AuthMethod: "NTLM", Description: "WinRM remote management client"},
	{Name: "RDP", Port: 3389, AuthMethod: "NTLM", Description: "Remote desktop client"},
	{Name: "SSH", Port: 22, AuthMethod: "PASSWORD", Description: "SSH client"},
}

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Info describes a client session's binding.
type Info struct {
	Protocol   string `json:"protocol"`
	Target     string `json:"target"`
	Port       int    `json:"port"`
	Principal  string `json:"principal,omitempty"`
	AuthMethod string `json:"authmethod"`
	LoggedIn   bool   `json:"logged_in"`
}

// Client is a protocol client session.
type Client struct {
	*session.Base

	proto Protocol
	dial  DialFunc

	mu   sync.Mutex
	conn net.Conn
}

// Factory returns the session factory for p. A nil dial uses the system
// dialer.
func Factory(p Protocol, dial DialFunc) session.Factory {
	return func(_ context.Context, env session.Env) (session.Session, error) {
		defaults := params.NewCollection(append(
			params.ClientSession(p.Name, p.AuthMethod),
			params.New(ParamPort, params.KindInt, "Service port", p.Port).AsAdvanced(),
		)...)
		base, err := session.NewBase(env, session.Client, p.Name, defaults, true)
		if err != nil {
			return nil, err
		}
		if dial == nil {
			dial = (&net.Dialer{}).DialContext
		}
		c := &Client{Base: base, proto: p, dial: dial}
		base.Commands().MustRegister(c.commands()...)
		return c, nil
	}
}

// Register declares every built-in protocol in r.
func Register(r *session.Registry, dial DialFunc) error {
	for _, p := range Protocols {
		if err := r.Register(session.Client, p.Name, Factory(p, dial), p.Description); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) target() (*target.Target, error) {
	id := strconv.Itoa(c.Params().Int(params.Target))
	t, ok := c.Host().Target(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, id)
	}
	return t, nil
}

func (c *Client) credential() (*credential.Credential, error) {
	v, err := c.Params().Get(params.Credential)
	if err != nil || v == nil {
		return nil, err
	}
	id := strconv.Itoa(c.Params().Int(params.Credential))
	cred, ok := c.Host().Credential(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCredential, id)
	}
	return cred, nil
}

// Login resolves the bound target and credential and connects to the
// service port.
func (c *Client) Login(ctx context.Context) error {
	t, err := c.target()
	if err != nil {
		return err
	}
	cred, err := c.credential()
	if err != nil {
		return err
	}

	timeout := c.Params().Duration(params.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(t.Address(), strconv.Itoa(c.port()))
	conn, err := c.dial(dctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, c.proto.Name, addr, err)
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.mu.Unlock()
	c.SetLoggedIn(true)

	ev := c.Logger().Info().Str("addr", addr)
	if cred != nil {
		ev = ev.Str("principal", cred.Principal())
	}
	ev.Msg("client connected")
	return nil
}

// Logout drops the connection. It is a no-op when not logged in.
func (c *Client) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetLoggedIn(false)
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Info reports the session's binding.
func (c *Client) Info() (Info, error) {
	t, err := c.target()
	if err != nil {
		return Info{}, err
	}
	cred, err := c.credential()
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Protocol:   c.proto.Name,
		Target:     t.Address(),
		Port:       c.port(),
		AuthMethod: c.Params().String(params.AuthMethod),
		LoggedIn:   c.LoggedIn(),
	}
	if cred != nil {
		info.Principal = cred.Principal()
	}
	return info, nil
}

// Close drops the connection.
func (c *Client) Close(context.Context) error {
	return c.Logout()
}

func (c *Client) port() int {
	if p := c.Params().Int(ParamPort); p > 0 {
		return p
	}
	return c.proto.Port
}

func (c *Client) commands() []*session.Command {
	return []*session.Command{
		{
			Name: "login", Help: "Connect to the target with the bound credential", Group: "CONNECTION",
			NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				if err := c.Login(ctx); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			Name: "logout", Help: "Close the connection", Group: "CONNECTION",
			Handler: func(ctx context.Context, args []string) (any, error) {
				if err := c.Logout(); err != nil {
					return nil, err
				}
				return true, nil
			},
		},
		{
			Name: "info", Help: "Show the session's target, port and principal", Group: "CONNECTION",
			NoLogin: true,
			Handler: func(ctx context.Context, args []string) (any, error) {
				return c.Info()
			},
		},
	}
}
