package config

import (
	"fmt"
	"strings"

	"github.com/example/denoisegraph/internal/transfer"
)

const (
	TransferLinear = "linear"
	TransferSRGB   = "srgb"
	TransferPU     = "pu"
)

// NormalizeTransfer validates and lowercases a transfer function name,
// defaulting an empty string to TransferPU.
func NormalizeTransfer(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		name = TransferPU
	}

	switch name {
	case TransferLinear, TransferSRGB, TransferPU:
		return name, nil
	default:
		return "", fmt.Errorf("invalid transfer function %q (expected %s|%s|%s)", raw, TransferLinear, TransferSRGB, TransferPU)
	}
}

// BuildTransfer constructs the transfer.Function named by cfg.Transfer, with
// scale folding in autoexposure (1 means no adjustment).
func BuildTransfer(cfg GraphConfig, scale float32) (transfer.Function, error) {
	name, err := NormalizeTransfer(cfg.Transfer)
	if err != nil {
		return nil, err
	}

	switch name {
	case TransferLinear:
		return transfer.NewLinear(scale), nil
	case TransferSRGB:
		return transfer.NewSRGB(scale), nil
	case TransferPU:
		return transfer.NewPU(scale), nil
	default:
		return nil, fmt.Errorf("invalid transfer function %q", name)
	}
}
