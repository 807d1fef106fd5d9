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
)

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [room]",
		Short: "Delete the snapshot and the log of a room",
		Args:  roomArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dial()
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			if err := db.DeleteRoom(context.Background(), key.Key(args[0])); err != nil {
				return err
			}

			cmd.Printf("room %s deleted\n", args[0])
			return nil
		},
	}
}

func init() {
	SubCmd.AddCommand(newDeleteCommand())
}
