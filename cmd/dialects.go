/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package cmd

import (
	"fmt"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/database"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/dialect"
	"github.com/spf13/cobra"
)

var dialectsCmd = &cobra.Command{
	Use:   "dialects",
	Short: "List supported target and database dialects",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Target dialects:")
		for _, t := range dialect.SupportedTypes() {
			fmt.Fprintf(out, "  %s\n", t)
		}
		fmt.Fprintln(out, "Database dialects (introspection):")
		for _, name := range database.RegisteredDialects() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	},
}
