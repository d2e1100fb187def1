package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/record"
	"github.com/ssargent/objektdb/pkg/schema"
	"github.com/ssargent/objektdb/pkg/table"
)

func jsonOutput(cmd *cobra.Command) bool {
	format, _ := cmd.Flags().GetString("output")
	return format == "json"
}

func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputRecord displays a single record, one field per line in schema order
func outputRecord(cmd *cobra.Command, c *record.Codec, oid uint64, r record.Record) error {
	fields := c.Format(r)
	if jsonOutput(cmd) {
		return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"oid": oid, "fields": fields})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	for _, f := range c.Schema().Fields {
		fmt.Fprintf(w, "%s:\t%s\n", f.Name, fields[f.Name])
	}
	return nil
}

// outputRecords displays records as rows with one column per field
func outputRecords(cmd *cobra.Command, c *record.Codec, records []record.Record) error {
	if jsonOutput(cmd) {
		rows := make([]map[string]string, len(records))
		for i, r := range records {
			rows[i] = c.Format(r)
		}
		return outputJSON(cmd.OutOrStdout(), rows)
	}
	if len(records) == 0 {
		cmd.Println("No records found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fields := c.Schema().Fields
	for i, f := range fields {
		fmt.Fprint(w, f.Name, sep(i, len(fields)))
	}
	for _, r := range records {
		text := c.Format(r)
		for i, f := range fields {
			fmt.Fprint(w, text[f.Name], sep(i, len(fields)))
		}
	}
	return nil
}

// outputTables displays the directory of a database
func outputTables(cmd *cobra.Command, entries []catalog.DirectoryEntry) error {
	if jsonOutput(cmd) {
		return outputJSON(cmd.OutOrStdout(), entries)
	}
	if len(entries) == 0 {
		cmd.Println("No tables found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tFILE\tLAST OID")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\n", e.Name, e.FilePath, e.LastOID)
	}
	return nil
}

// outputTable displays a table schema and its occupancy
func outputTable(cmd *cobra.Command, ts *schema.TableSchema, stats table.Stats) error {
	if jsonOutput(cmd) {
		return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"schema": ts, "stats": stats})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Table:\t%s\n", ts.Name)
	fmt.Fprintf(w, "Records:\t%d\n", stats.Records)
	fmt.Fprintf(w, "Last OID:\t%d\n", stats.LastOID)
	fmt.Fprintf(w, "File size:\t%d\n", stats.FileSize)
	if len(ts.References) > 0 {
		fmt.Fprintf(w, "References:\t%s\n", strings.Join(ts.References, ", "))
	}
	if len(ts.Methods) > 0 {
		fmt.Fprintf(w, "Methods:\t%s\n", strings.Join(ts.Methods, ", "))
	}
	fmt.Fprintln(w, "\nFIELD\tTYPE\tKIND")
	for _, f := range ts.Fields {
		kind := ""
		switch {
		case f.IsOID:
			kind = "oid"
		case f.IsFK:
			kind = "fk"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", f.Name, f.Type, kind)
	}
	return nil
}

func sep(i, n int) string {
	if i == n-1 {
		return "\n"
	}
	return "\t"
}
