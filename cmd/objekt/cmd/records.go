package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/record"
	"github.com/ssargent/objektdb/pkg/table"
)

// parseAssignments turns field=value arguments into a map.
func parseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q: want field=value", arg)
		}
		if _, dup := out[name]; dup {
			return nil, fmt.Errorf("field %q given twice", name)
		}
		out[name] = value
	}
	return out, nil
}

func parseOID(arg string) (uint64, error) {
	oid, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("oid %q: want an unsigned integer", arg)
	}
	return oid, nil
}

// withTable opens a database and one of its tables for the duration of fn.
func withTable(cmd *cobra.Command, db, name string, fn func(h *table.Handle) error) error {
	return withDatabase(cmd, db, func(d *catalog.Database) error {
		h, err := d.OpenTable(name)
		if err != nil {
			return err
		}
		return fn(h)
	})
}

func newInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <db> <table> field=value...",
		Short: "Insert a record; the OID is assigned",
		Long: `Insert a record. Every field except the OID must be given.

Example:
  objekt insert shop customers name=ada vip=true`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			return withTable(cmd, args[0], args[1], func(h *table.Handle) error {
				values, err := h.Codec().ParseValues(text)
				if err != nil {
					return err
				}
				oid, err := h.Insert(values)
				if err != nil {
					return err
				}
				cmd.Printf("Inserted %s.%s oid %d\n", args[0], args[1], oid)
				return nil
			})
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <db> <table> <oid>",
		Short: "Print one record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[2])
			if err != nil {
				return err
			}
			return withTable(cmd, args[0], args[1], func(h *table.Handle) error {
				r, err := h.Read(oid)
				if err != nil {
					return err
				}
				return outputRecord(cmd, h.Codec(), oid, r)
			})
		},
	}
}

func newReplaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <db> <table> <oid> field=value...",
		Short: "Replace every non-OID field of a record",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[2])
			if err != nil {
				return err
			}
			text, err := parseAssignments(args[3:])
			if err != nil {
				return err
			}
			return withTable(cmd, args[0], args[1], func(h *table.Handle) error {
				c := h.Codec()
				values, err := c.ParseValues(text)
				if err != nil {
					return err
				}
				id, err := codec.OIDValue(c.Schema().OIDField().Type, oid)
				if err != nil {
					return err
				}
				if err := h.Replace(append(record.Record{id}, values...)); err != nil {
					return err
				}
				cmd.Printf("Replaced %s.%s oid %d\n", args[0], args[1], oid)
				return nil
			})
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <db> <table> <oid>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOID(args[2])
			if err != nil {
				return err
			}
			return withTable(cmd, args[0], args[1], func(h *table.Handle) error {
				if err := h.Delete(oid); err != nil {
					return err
				}
				cmd.Printf("Deleted %s.%s oid %d\n", args[0], args[1], oid)
				return nil
			})
		},
	}
}

func newScanCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "scan <db> <table>",
		Short: "Print the records of a table in OID order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withTable(cmd, args[0], args[1], func(h *table.Handle) error {
				var records []record.Record
				errStop := errors.New("limit reached")
				err := h.Scan(func(_ uint64, r record.Record) error {
					if limit > 0 && len(records) == limit {
						return errStop
					}
					records = append(records, r)
					return nil
				})
				if err != nil && !errors.Is(err, errStop) {
					return err
				}
				return outputRecords(cmd, h.Codec(), records)
			})
		},
	}
	c.Flags().IntP("limit", "n", 0, "Stop after this many records (0 means all)")
	return c
}
