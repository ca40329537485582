package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yandri918/prediksi-cuaca/pkg/database"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "DB 스키마 마이그레이션",
	Long: `내장된 SQL 마이그레이션을 버전 순서대로 적용합니다.
이미 적용된 버전은 schema_migrations 테이블로 건너뜁니다.

Example:
  go run ./cmd/cuaca migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := database.Migrate(ctx, a.db.Pool)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) == 0 {
		PrintInfo("Schema is up to date")
		return nil
	}
	fmt.Println("Applied migrations:")
	PrintList(applied)
	return nil
}
