package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/catalog"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/schema"
)

const schemaFlagsHelp = `Columns are declared with repeated flags, in order:
  --oid name:type            identity field, assigned on insert (default id:u64)
  --field name:type          primitive field
  --field name:type:table    foreign key holding an OID of table
  --ref table                referenced table without a key field
  --method name              method name, recorded as metadata

Types: i8 i16 i32 i64 i128 u8 u16 u32 u64 u128 isize usize f32 f64 bool char String`

func addSchemaFlags(c *cobra.Command) {
	c.Flags().String("oid", "id:u64", "Identity field as name:type")
	c.Flags().StringArray("field", nil, "Field as name:type, or name:type:table for a foreign key")
	c.Flags().StringArray("ref", nil, "Referenced table")
	c.Flags().StringArray("method", nil, "Method name")
}

// schemaFromFlags builds a table schema from the flags added by addSchemaFlags.
func schemaFromFlags(cmd *cobra.Command, name string) (*schema.TableSchema, error) {
	oid, _ := cmd.Flags().GetString("oid")
	fields, _ := cmd.Flags().GetStringArray("field")
	refs, _ := cmd.Flags().GetStringArray("ref")
	methods, _ := cmd.Flags().GetStringArray("method")

	ts := schema.New(name)

	parts := strings.Split(oid, ":")
	if len(parts) != 2 {
		return nil, fmt.Errorf("--oid %q: want name:type", oid)
	}
	t, err := codec.ParseType(parts[1])
	if err != nil {
		return nil, fmt.Errorf("--oid %q: %w", oid, err)
	}
	ts.OID(parts[0], t)

	for _, spec := range fields {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("--field %q: want name:type or name:type:table", spec)
		}
		t, err := codec.ParseType(parts[1])
		if err != nil {
			return nil, fmt.Errorf("--field %q: %w", spec, err)
		}
		if len(parts) == 3 {
			ts.ForeignKey(parts[0], t, parts[2])
		} else {
			ts.Field(parts[0], t)
		}
	}
	for _, r := range refs {
		ts.Reference(r)
	}
	for _, m := range methods {
		ts.Method(m)
	}
	return ts, nil
}

func newCreateTableCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "create-table <db> <table>",
		Short: "Register a table and create its files",
		Long: "Register a table in a database catalog and create its table and bucket files.\n\n" +
			schemaFlagsHelp + `

Example:
  objekt create-table shop orders --oid id:i64 --field customer:i64:customers --field total:f64`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := schemaFromFlags(cmd, args[1])
			if err != nil {
				return err
			}
			err = withDatabase(cmd, args[0], func(db *catalog.Database) error {
				return db.RegisterTable(ts)
			})
			if err != nil {
				return err
			}
			cmd.Printf("Created table %s.%s\n", args[0], args[1])
			return nil
		},
	}
	addSchemaFlags(c)
	return c
}

func newReinitTableCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "reinit-table <db> <table>",
		Short: "Rewrite a table file, dropping all of its records",
		Long: "Rewrite the header of a registered table and empty its data region.\n" +
			"Without --field flags the current schema is kept.\n\n" + schemaFlagsHelp,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withDatabase(cmd, args[0], func(db *catalog.Database) error {
				var ts *schema.TableSchema
				var err error
				if cmd.Flags().Changed("field") || cmd.Flags().Changed("oid") {
					ts, err = schemaFromFlags(cmd, args[1])
				} else {
					ts, err = db.Schema(args[1])
				}
				if err != nil {
					return err
				}
				return db.ReinitializeTable(ts)
			})
			if err != nil {
				return err
			}
			cmd.Printf("Reinitialized table %s.%s\n", args[0], args[1])
			return nil
		},
	}
	addSchemaFlags(c)
	return c
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <db> [table]",
		Short: "List the tables of a database, or describe one table",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, args[0], func(db *catalog.Database) error {
				if len(args) == 1 {
					return outputTables(cmd, db.Tables())
				}
				h, err := db.OpenTable(args[1])
				if err != nil {
					return err
				}
				return outputTable(cmd, h.Schema(), h.Stats())
			})
		},
	}
}
