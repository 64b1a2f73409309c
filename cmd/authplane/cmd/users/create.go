package users

import (
	"bufio"
	"context"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/config"
	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/repository"
)

var (
	usernameFlag string
	emailFlag    string
	phoneFlag    string
	passwordFlag string
	domainFlag   string
	rolesInput   []string
	stdinFlag    bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new local user",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Validate required flags
		if usernameFlag == "" {
			return fmt.Errorf("--username flag is required")
		}

		password := passwordFlag
		if stdinFlag {
			// Read password from stdin
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print("Enter password: ")
			if scanner.Scan() {
				password = scanner.Text()
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
		}

		if password == "" {
			return fmt.Errorf("password is required (use --password or --stdin)")
		}

		if emailFlag != "" {
			if _, err := mail.ParseAddress(emailFlag); err != nil {
				return fmt.Errorf("invalid email format: %w", err)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		ctx := context.Background()
		userRepo := repository.NewBunUserRepository(db)
		ruleRepo := repository.NewBunRuleRepository(db)

		// Check if username already exists
		existing, err := userRepo.GetByIdentifier(ctx, usernameFlag)
		if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
			return fmt.Errorf("failed to check username uniqueness: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("user %q already exists", usernameFlag)
		}

		// Hash password with bcrypt
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), 12)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		user := &models.User{
			Username:     usernameFlag,
			PasswordHash: string(hashedPassword),
			Domain:       domainFlag,
			Status:       models.UserStatusEnabled,
		}
		if emailFlag != "" {
			user.Email = &emailFlag
		}
		if phoneFlag != "" {
			user.PhoneNumber = &phoneFlag
		}

		if err := userRepo.Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		// Grant each role through a grouping rule so the enforcer and the
		// role-closure queries pick it up on the next reload.
		for _, role := range rolesInput {
			rule := &models.Rule{
				Ptype: models.PtypeRelation,
				V0:    user.UID(),
				V1:    role,
				V2:    domainFlag,
			}
			if err := ruleRepo.Create(ctx, rule); err != nil {
				return fmt.Errorf("failed to grant role %q: %w", role, err)
			}
			fmt.Printf("Granted role %q\n", role)
		}

		fmt.Println("User created successfully!")
		fmt.Println("----------------------------------------")
		fmt.Printf("User ID: %s\n", user.UID())
		fmt.Printf("Username: %s\n", user.Username)
		if user.Email != nil {
			fmt.Printf("Email: %s\n", *user.Email)
		}
		if domainFlag != "" {
			fmt.Printf("Domain: %s\n", domainFlag)
		}
		if len(rolesInput) > 0 {
			fmt.Printf("Roles: %s\n", strings.Join(rolesInput, ", "))
		}
		fmt.Println("----------------------------------------")

		return nil
	},
}
