package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/glassbank/bank"
	"github.com/jmcleod/glassbank/demo"
	"github.com/jmcleod/glassbank/internal/util"
	"github.com/jmcleod/glassbank/security"
	"github.com/jmcleod/glassbank/storage/sqlite"
)

const installMarker = ".installed"

// startingBalanceCents is seeded into each demo account so the transfer
// and withdrawal demos have money to move on a fresh install.
const startingBalanceCents = 100_000

var (
	setupDataDir string
	setupLevel   string
	setupForce   bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Initialize the database and seed demo users",
	Long: `Creates the database schema, seeds an admin and a demo user with
generated passwords, funds their accounts, and pins every vulnerability
to the chosen security level. Running setup twice is refused unless
--force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(setupDataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		marker := filepath.Join(setupDataDir, installMarker)
		if _, err := os.Stat(marker); err == nil && !setupForce {
			return fmt.Errorf("already installed (%s exists), use --force to reinstall", marker)
		}

		level, err := security.ParseLevel(setupLevel)
		if err != nil {
			return fmt.Errorf("invalid --level: %w", err)
		}

		store, err := sqlite.Open(filepath.Join(setupDataDir, "glassbank.db"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()

		ctx := context.Background()
		svc := bank.NewService(store, store, store)

		adminPassword, err := seedUser(ctx, store, svc, "admin", "admin@glassbank.test", bank.RoleAdmin)
		if err != nil {
			return err
		}
		alicePassword, err := seedUser(ctx, store, svc, "alice", "alice@glassbank.test", bank.RoleUser)
		if err != nil {
			return err
		}

		known := []string{demo.SQLInjectionID, demo.XSSID, demo.CSRFID}
		levels := security.NewLevelStore(store, known, level)
		if err := levels.ResetAll(ctx, 0); err != nil {
			return fmt.Errorf("failed to seed security levels: %w", err)
		}

		stamp := time.Now().UTC().Format(time.RFC3339)
		if err := os.WriteFile(marker, []byte(stamp+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write install marker: %w", err)
		}

		printBanner()
		fmt.Println("Setup complete. Seeded credentials (shown once, store them now):")
		fmt.Printf("  admin / %s\n", adminPassword)
		fmt.Printf("  alice / %s\n", alicePassword)
		fmt.Printf("All vulnerabilities set to level %q.\n", level)
		return nil
	},
}

// seedUser registers a funded user with a generated password and returns
// the password. On a --force reinstall the user already exists; their
// password is rotated instead.
func seedUser(ctx context.Context, store *sqlite.Store, svc *bank.Service, username, email string, role bank.Role) (string, error) {
	password, err := util.RandomPassword(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate password for %s: %w", username, err)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password for %s: %w", username, err)
	}
	user, account, err := svc.Register(ctx, username, email, hash)
	if errors.Is(err, bank.ErrDuplicate) {
		existing, findErr := store.FindByUsername(ctx, username)
		if findErr != nil {
			return "", fmt.Errorf("failed to look up existing user %s: %w", username, findErr)
		}
		if err := store.UpdatePassword(ctx, existing.ID, hash); err != nil {
			return "", fmt.Errorf("failed to rotate password for %s: %w", username, err)
		}
		return password, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to seed user %s: %w", username, err)
	}
	if role != bank.RoleUser {
		if err := store.UpdateUserRole(ctx, user.ID, role); err != nil {
			return "", fmt.Errorf("failed to set role for %s: %w", username, err)
		}
	}
	if _, err := store.Deposit(ctx, account.ID, startingBalanceCents, "seed", "initial funding"); err != nil {
		return "", fmt.Errorf("failed to fund account for %s: %w", username, err)
	}
	return password, nil
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().StringVar(&setupDataDir, "data-dir", "./data", "Directory for persistent data")
	setupCmd.Flags().StringVar(&setupLevel, "level", string(security.LevelImpossible), "Initial security level for every vulnerability")
	setupCmd.Flags().BoolVar(&setupForce, "force", false, "Reinstall even if an install marker exists")
}
