// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package session defines the console's long-lived stateful objects
// (clients, scanners, utilities and servers), their command tables and the
// checked registry of session types.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/target"
)

// MajorType is the session category.
type MajorType string

const (
	Client  MajorType = "CLIENT"
	Scanner MajorType = "SCANNER"
	Util    MajorType = "UTIL"
	Server  MajorType = "SERVER"
)

// AllMajorTypes lists the categories in display order.
func AllMajorTypes() []MajorType {
	return []MajorType{Client, Scanner, Util, Server}
}

// ParseMajorType normalises s and checks it is a known category.
func ParseMajorType(s string) (MajorType, error) {
	m := MajorType(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case Client, Scanner, Util, Server:
		return m, nil
	}
	return "", fmt.Errorf("%w: major type %q", ErrInvalidType, s)
}

// Type is the two-level tag identifying a session implementation.
type Type struct {
	Major MajorType
	Minor string
}

func (t Type) String() string {
	return string(t.Major) + "/" + t.Minor
}

// Printer streams console output on behalf of a session.
type Printer interface {
	Print(ctx context.Context, sessionID, msg string)
	PrintError(ctx context.Context, sessionID string, err error)
}

// Host is the part of the console a session may call back into.
type Host interface {
	Printer
	Target(id string) (*target.Target, bool)
	Credential(id string) (*credential.Credential, bool)
}

// Env carries what a factory needs to construct a session.
type Env struct {
	ID   string
	Host Host

	// Params, when set, holds values restored from a previous run that
	// override the session's declared defaults.
	Params *params.Collection
}

// Factory constructs a session of one registered type.
type Factory func(ctx context.Context, env Env) (Session, error)

// Session is any console-tracked stateful object.
type Session interface {
	ID() string
	MajorType() MajorType
	SubType() string
	Params() *params.Collection
	Commands() *CommandTable
	Close(ctx context.Context) error
}
