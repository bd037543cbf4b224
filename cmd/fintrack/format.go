package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fintrack/fintrack/internal/ledger"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	case "":
		return formatTable, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json or yaml)", s)
	}
}

// txView is the machine-readable shape of a transaction.
type txView struct {
	ID     string `json:"id" yaml:"id"`
	Date   string `json:"date" yaml:"date"`
	Amount string `json:"amount" yaml:"amount"`
	Note   string `json:"note" yaml:"note"`
}

func viewOf(tx ledger.Transaction) txView {
	return txView{
		ID:     tx.ID,
		Date:   ledger.FormatDate(tx.Date),
		Amount: tx.Amount.String(),
		Note:   tx.Note,
	}
}

// writeStructured encodes v as JSON or YAML.
func writeStructured(w io.Writer, f outputFormat, v interface{}) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("format %q is not structured", f)
	}
}
