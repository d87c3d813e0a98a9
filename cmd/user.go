package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/marquee/apiserver/config"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/db"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/internal/store"
	"github.com/spf13/cobra"
)

// bootstrapSubject marks accounts created from the command line in events.
const bootstrapSubject = "cli"

var userCreateFlags struct {
	username string
	password string
	roles    []string
	client   string
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts directly in the database",
}

// userCreateCmd bypasses the HTTP layer so the first root account can exist.
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Creates a user account directly in the database. This is how the first
root account is provisioned:

	marquee user create --username root --password '...' --roles root
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, cfg.Env)

		roles, err := parseRoles(auth.DefaultPermissionModel(), userCreateFlags.roles)
		if err != nil {
			return err
		}

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		users := services.NewUserService(store.NewUserRepository(dbConn), auth.NewPasswordHasher(cfg.Auth.BcryptCost), nil)
		created, err := users.Create(ctx, bootstrapSubject, services.NewUser{
			Username: userCreateFlags.username,
			Password: userCreateFlags.password,
			Roles:    roles,
			Client:   userCreateFlags.client,
		})
		if err != nil {
			return err
		}

		logger.Info("user created", "user_id", created.ID, "username", created.Username, "roles", created.Roles)
		fmt.Fprintf(cmd.OutOrStdout(), "created user %d (%s)\n", created.ID, created.Username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	flags := userCreateCmd.Flags()
	flags.StringVar(&userCreateFlags.username, "username", "", "login name")
	flags.StringVar(&userCreateFlags.password, "password", "", "plaintext password, hashed before storage")
	flags.StringSliceVar(&userCreateFlags.roles, "roles", nil, "comma separated roles (user, finops, admin, root)")
	flags.StringVar(&userCreateFlags.client, "client", "", "optional client label")
	_ = userCreateCmd.MarkFlagRequired("username")
	_ = userCreateCmd.MarkFlagRequired("password")
	_ = userCreateCmd.MarkFlagRequired("roles")
}

func parseRoles(model *auth.PermissionModel, names []string) ([]auth.Role, error) {
	roles := make([]auth.Role, 0, len(names))
	for _, name := range names {
		role := auth.Role(strings.ToLower(strings.TrimSpace(name)))
		if role == "" {
			continue
		}
		if !model.Known(role) {
			return nil, fmt.Errorf("unknown role %q", name)
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return nil, errors.New("at least one role is required")
	}
	return roles, nil
}
