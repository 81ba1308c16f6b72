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
	"strings"

	"github.com/GoogleCloudPlatform/db-query-seeder/internal/seeder"
	"github.com/GoogleCloudPlatform/db-query-seeder/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	queryFlag     string
	queryFileFlag string
	outputFile    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate INSERT statements that make a query return rows",
	Long: `Generates INSERT statements for the tables a query reads, in dependency
order, and writes them to an output file. Unless --dry-run=false is given the
database is left untouched.`,
	Example: `  db_query_seeder generate --dialect postgres --host localhost --username app --password secret --database shop \
    --query "SELECT * FROM orders o JOIN users u ON u.id = o.user_id WHERE u.country = 'NZ'" --rows 20

  db_query_seeder generate --schema-file schema.yaml --target sqlserver --query-file queries.sql`,
	RunE: runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	queries, err := readQueries()
	if err != nil {
		return err
	}

	s, err := newSession(ctx, cmd, tablesFlag)
	if err != nil {
		return err
	}
	defer s.Close()

	reqs := make([]seeder.Request, len(queries))
	for i, q := range queries {
		reqs[i] = seeder.Request{SQL: q, Rows: appConfig.Generation.Rows}
	}
	results, err := s.svc.GenerateBatch(ctx, reqs)
	if err != nil {
		logger.Error("Failed to generate insert statements", zap.Error(err))
		return fmt.Errorf("failed to generate insert statements: %w", err)
	}

	sections, total := buildSections(queries, results)
	if outputFile == "" {
		outputFile = utils.GetDefaultOutputFilePath(appConfig.Database.DBName, string(s.svc.Target()))
	}
	if err := utils.WriteSQLFile(outputFile, sections); err != nil {
		return err
	}
	logger.Info("Insert statements written", zap.String("file", outputFile), zap.Int("statements", total))

	if dryRun {
		logger.Info("Dry run mode enabled, no changes applied to the database. Review the output file and run again with --dry-run=false to apply")
		return nil
	}
	if s.db == nil {
		return fmt.Errorf("applying statements requires a database connection")
	}
	if !utils.ConfirmAction(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("%d INSERT statements in %s", total, outputFile)) {
		logger.Info("Operation cancelled by user")
		return nil
	}

	// The file may have been edited after review.
	statements, err := utils.ReadSQLStatementsFromFile(outputFile)
	if err != nil {
		return err
	}
	ordered := make([]seeder.OrderedSQL, len(statements))
	for i, st := range statements {
		ordered[i] = seeder.OrderedSQL{SQL: st}
	}
	if err := s.svc.Apply(ctx, s.db, ordered); err != nil {
		logger.Error("Failed to apply insert statements", zap.Error(err))
		return err
	}
	logger.Info("Insert statements applied", zap.Int("statements", len(ordered)))
	return nil
}

func readQueries() ([]string, error) {
	switch {
	case queryFlag != "" && queryFileFlag != "":
		return nil, fmt.Errorf("--query and --query-file are mutually exclusive")
	case queryFlag != "":
		return []string{strings.TrimSpace(queryFlag)}, nil
	case queryFileFlag != "":
		queries, err := utils.ReadQueriesFromFile(queryFileFlag)
		if err != nil {
			return nil, err
		}
		if len(queries) == 0 {
			return nil, fmt.Errorf("no queries found in %s", queryFileFlag)
		}
		return queries, nil
	default:
		return nil, fmt.Errorf("one of --query or --query-file is required")
	}
}

func buildSections(queries []string, results []*seeder.Result) ([]utils.SQLSection, int) {
	sections := make([]utils.SQLSection, len(results))
	total := 0
	for i, res := range results {
		sections[i] = utils.SQLSection{Query: queries[i], Statements: res.SQLs()}
		total += len(res.Statements)
	}
	return sections, total
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVarP(&queryFlag, "query", "q", "", "SQL query the generated rows must satisfy")
	flags.StringVarP(&queryFileFlag, "query-file", "f", "", "File of semicolon separated queries")
	flags.Int("rows", 10, "Rows to generate for each queried table")
	flags.StringVarP(&outputFile, "out_file", "o", "", "Output SQL file (default: <database>_<target>_seed.sql)")
	bindFlag(flags, "generation.rows", "rows")
}
