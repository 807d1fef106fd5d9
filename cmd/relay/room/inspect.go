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

	"github.com/yorkie-team/relay/pkg/document"
	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
)

var tail int

// stored is what a store holds for a room, replayed into a document.
type stored struct {
	Key         key.Key                `json:"key" yaml:"key"`
	SnapshotSeq int64                  `json:"snapshot_seq" yaml:"snapshot_seq"`
	LastSeq     int64                  `json:"last_seq" yaml:"last_seq"`
	Text        string                 `json:"text" yaml:"text"`
	Updates     []*database.UpdateInfo `json:"-" yaml:"-"`
	Snapshot    *database.SnapshotInfo `json:"-" yaml:"-"`
	Tail        []updateSummary        `json:"tail" yaml:"tail"`
	doc         *document.Doc
}

type updateSummary struct {
	Seq       int64     `json:"seq" yaml:"seq"`
	Size      int       `json:"size" yaml:"size"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// replay loads the room and folds its snapshot and log into a fresh
// document.
func replay(ctx context.Context, db database.Database, roomKey key.Key) (*stored, error) {
	snapshot, updates, err := db.LoadRoom(ctx, roomKey)
	if err != nil {
		return nil, err
	}
	if snapshot == nil && len(updates) == 0 {
		return nil, fmt.Errorf("%s: %w", roomKey, database.ErrRoomNotFound)
	}

	s := &stored{
		Key:      roomKey,
		Updates:  updates,
		Snapshot: snapshot,
		doc:      document.New(),
	}
	if snapshot != nil {
		if err := s.doc.ApplyUpdate(snapshot.State, document.OriginLoad); err != nil {
			return nil, fmt.Errorf("apply snapshot %d: %w", snapshot.Seq, err)
		}
		s.SnapshotSeq = snapshot.Seq
		s.LastSeq = snapshot.Seq
	}
	for _, update := range updates {
		if err := s.doc.ApplyUpdate(update.Payload, document.OriginLoad); err != nil {
			return nil, fmt.Errorf("apply update %d: %w", update.Seq, err)
		}
		s.LastSeq = max(s.LastSeq, update.Seq)
	}
	s.Text = s.doc.Text()
	return s, nil
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [room]",
		Short: "Print the text extract and the log tail of a room",
		Args:  roomArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dial()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			s, err := replay(context.Background(), db, key.Key(args[0]))
			if err != nil {
				return err
			}

			return printRoom(cmd.OutOrStdout(), output, s, tail)
		},
	}
}

func printRoom(w io.Writer, output string, s *stored, tail int) error {
	from := max(len(s.Updates)-tail, 0)
	s.Tail = nil
	for _, update := range s.Updates[from:] {
		s.Tail = append(s.Tail, updateSummary{
			Seq:       update.Seq,
			Size:      update.Size,
			CreatedAt: update.CreatedAt,
		})
	}

	switch output {
	case "":
		if _, err := fmt.Fprintf(
			w,
			"Room: %s\nSnapshot seq: %d\nLast seq: %d\n\n%s\n",
			s.Key,
			s.SnapshotSeq,
			s.LastSeq,
			s.Text,
		); err != nil {
			return err
		}

		tw := table.NewWriter()
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = false
		tw.Style().Options.SeparateFooter = false
		tw.Style().Options.SeparateHeader = false
		tw.Style().Options.SeparateRows = false
		tw.AppendHeader(table.Row{"SEQ", "SIZE", "CREATED AT"})
		for _, update := range s.Tail {
			tw.AppendRow(table.Row{
				update.Seq,
				update.Size,
				update.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		_, err := fmt.Fprintf(w, "%s\n", tw.Render())
		return err
	case "json":
		jsonOutput, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(jsonOutput))
		return err
	case "yaml":
		yamlOutput, err := yaml.Marshal(s)
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
	cmd := newInspectCommand()
	cmd.Flags().IntVar(
		&tail,
		"tail",
		10,
		"Number of the newest log entries to print",
	)
	SubCmd.AddCommand(cmd)
}
