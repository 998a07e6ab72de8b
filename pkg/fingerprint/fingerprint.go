// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package fingerprint resolves service banners into product metadata using
// static rules.
package fingerprint

import (
	"context"
	"errors"
	"strings"
)

// ErrNoMatch is returned when no rule identifies a banner.
var ErrNoMatch = errors.New("no matching fingerprint rule")

// Input is a banner read from an open port.
type Input struct {
	Port   int
	Banner string
}

// Result identifies the product behind a banner.
type Result struct {
	RuleID     string  `json:"rule_id"`
	Product    string  `json:"product"`
	Vendor     string  `json:"vendor"`
	Version    string  `json:"version,omitempty"`
	CPE        string  `json:"cpe,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Service renders the result as "Product Version".
func (r Result) Service() string {
	return strings.TrimSpace(r.Product + " " + r.Version)
}

// Resolver is implemented by fingerprint engines.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Result, error)
}
