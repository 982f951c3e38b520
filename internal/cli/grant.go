package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icebox-app/icebox/internal/premium"
)

var (
	grantUser int64
	grantDays int
)

var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant premium to a user without a payment",
	RunE:  runGrant,
}

func init() {
	grantCmd.Flags().Int64Var(&grantUser, "user", 0, "user id (required)")
	grantCmd.Flags().IntVar(&grantDays, "days", 30, "premium duration in days")
	grantCmd.MarkFlagRequired("user")
}

func runGrant(cmd *cobra.Command, args []string) error {
	db, err := openDefaultDB()
	if err != nil {
		return err
	}
	defer db.Close()

	m := premium.NewManager(db, nil)
	until, err := m.Grant(grantUser, grantDays)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "user %d premium until %s\n",
		grantUser, time.UnixMilli(until).Format("2006-01-02"))
	return nil
}
