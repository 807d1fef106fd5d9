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

	"github.com/spf13/cobra"

	"github.com/yorkie-team/relay/pkg/document/key"
	"github.com/yorkie-team/relay/server/backend/database"
)

// compact replays the room and replaces its log with a snapshot at the
// last replayed sequence number. The relay must not serve the room.
func compact(ctx context.Context, db database.Database, roomKey key.Key) (*database.SnapshotInfo, error) {
	s, err := replay(ctx, db, roomKey)
	if err != nil {
		return nil, err
	}

	snapshot := database.NewSnapshotInfo(
		roomKey,
		s.LastSeq,
		s.doc.EncodeStateAsUpdate(),
		s.doc.EncodeStateVector(),
		s.Text,
	)
	if err := db.CompactRoom(ctx, snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func newCompactCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compact [room]",
		Short: "Fold the log of a room into its snapshot",
		Args:  roomArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dial()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			snapshot, err := compact(context.Background(), db, key.Key(args[0]))
			if err != nil {
				return err
			}

			cmd.Printf("room %s compacted at seq %d (%d bytes)\n", args[0], snapshot.Seq, snapshot.Size)
			return nil
		},
	}
}

func init() {
	SubCmd.AddCommand(newCompactCommand())
}
