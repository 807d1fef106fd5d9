/*
 * Copyright 2026 The Yorkie Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package room

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/yorkie-team/relay/server/backend/database"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List all stored rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dial()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			rooms, err := db.ListRooms(context.Background())
			if err != nil {
				return err
			}

			return printRooms(cmd.OutOrStdout(), output, rooms)
		},
	}
}

func printRooms(w io.Writer, output string, rooms []*database.RoomInfo) error {
	switch output {
	case "":
		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{
			"KEY",
			"SNAPSHOT SEQ",
			"LOG ENTRIES",
			"SNAPSHOT SIZE",
			"LAST SEQ",
			"UPDATED AT",
		})
		for _, room := range rooms {
			tw.AppendRow(table.Row{
				room.Key,
				room.SnapshotSeq,
				room.Updates,
				room.SnapshotSize,
				room.LastSeq,
				room.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		_, err := fmt.Fprintf(w, "%s\n", tw.Render())
		return err
	case "json":
		jsonOutput, err := json.MarshalIndent(rooms, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonOutput))
		return err
	case "yaml":
		yamlOutput, err := yaml.Marshal(rooms)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		_, err = fmt.Fprintln(w, string(yamlOutput))
		return err
	default:
		return fmt.Errorf("unknown output format: %s", output)
	}
}

func init() {
	SubCmd.AddCommand(newListCommand())
}
