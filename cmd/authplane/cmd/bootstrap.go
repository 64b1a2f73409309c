package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/app"
	"github.com/authplane/authplane/internal/cqrs"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/dto"
	"github.com/authplane/authplane/internal/repository"
)

var (
	bootstrapUsername string
	bootstrapPassword string
	bootstrapDomain   string
	bootstrapRole     string
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Seed an admin principal and publish the starter model",
	Long: `Creates an administrator user, publishes the seeded enforcement model,
and grants the admin role full access to the admin API. Run once after
'db migrate' on a fresh database; every step is idempotent.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if bootstrapPassword == "" {
			return fmt.Errorf("--password flag is required")
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to assemble application: %w", err)
		}
		defer a.Close()

		// 1. Admin user
		admin, err := a.Users.GetByIdentifier(ctx, bootstrapUsername)
		switch {
		case err == nil:
			log.Printf("User %q already exists, skipping creation", bootstrapUsername)
		case apperr.IsKind(err, apperr.KindNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(bootstrapPassword), 12)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			admin = &models.User{
				Username:     bootstrapUsername,
				PasswordHash: string(hash),
				Domain:       bootstrapDomain,
				Status:       models.UserStatusEnabled,
			}
			if err := a.Users.Create(ctx, admin); err != nil {
				return fmt.Errorf("failed to create admin user: %w", err)
			}
			log.Printf("Created user %q (id %s)", bootstrapUsername, admin.UID())
		default:
			return fmt.Errorf("failed to look up admin user: %w", err)
		}

		// 2. Publish the seeded model unless something is already active.
		if err := publishSeedModel(ctx, a); err != nil {
			return err
		}

		// 3. Admin role covers the whole admin API in the chosen domain.
		policies, _, err := a.Rules.PagePolicies(ctx, repository.PolicyFilter{
			Subject: bootstrapRole, Domain: bootstrapDomain, Size: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to check existing policies: %w", err)
		}
		if len(policies) == 0 {
			_, err = a.Bus.DispatchCommand(ctx, cqrs.CmdPolicyCreate, &cqrs.PolicyCreate{
				Policy: dto.PolicyRuleDTO{
					Ptype:   models.PtypePolicy,
					Subject: bootstrapRole,
					Object:  "/api/v1/*",
					Action:  ".*",
					Domain:  bootstrapDomain,
				},
				UID: "system",
			})
			if err != nil {
				return fmt.Errorf("failed to create admin policy: %w", err)
			}
			log.Printf("Granted %q full admin-API access", bootstrapRole)
		} else {
			log.Printf("Policy for %q already exists, skipping", bootstrapRole)
		}

		// 4. Bind the admin user to the role.
		relations, _, err := a.Rules.PageRelations(ctx, repository.RelationFilter{
			ChildSubject: admin.UID(), ParentRole: bootstrapRole, Domain: bootstrapDomain, Size: 1,
		})
		if err != nil {
			return fmt.Errorf("failed to check existing relations: %w", err)
		}
		if len(relations) == 0 {
			_, err = a.Bus.DispatchCommand(ctx, cqrs.CmdRelationCreate, &cqrs.RelationCreate{
				Relation: dto.RoleRelationDTO{
					ChildSubject: admin.UID(),
					ParentRole:   bootstrapRole,
					Domain:       bootstrapDomain,
				},
				UID: "system",
			})
			if err != nil {
				return fmt.Errorf("failed to bind admin role: %w", err)
			}
			log.Printf("Bound user %q to role %q", bootstrapUsername, bootstrapRole)
		} else {
			log.Printf("User %q already holds role %q, skipping", bootstrapUsername, bootstrapRole)
		}

		log.Printf("Bootstrap complete")
		return nil
	},
}

// bootstrapModel is the fallback enforcement model when the database holds
// no draft, matching the one the seed migration ships.
const bootstrapModel = `[request_definition]
r = sub, obj, act, dom

[policy_definition]
p = sub, obj, act, dom

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act) && r.dom == p.dom
`

// publishSeedModel activates the oldest draft when no version is active yet,
// creating a starter draft first if the table is empty.
func publishSeedModel(ctx context.Context, a *app.App) error {
	active, err := a.ModelSvc.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to check active model: %w", err)
	}
	if active != nil {
		log.Printf("Model version %d already active, skipping publish", active.Version)
		return nil
	}

	drafts, _, err := a.ModelConfigs.PageVersions(ctx, repository.ModelVersionFilter{
		Current: 1, Size: 1, Status: models.ModelStatusDraft,
	})
	if err != nil {
		return fmt.Errorf("failed to list draft models: %w", err)
	}

	var draftID int64
	var draftVersion int
	if len(drafts) > 0 {
		draftID, draftVersion = drafts[0].ID, drafts[0].Version
	} else {
		remark := "domain RBAC starter model"
		out, err := a.Bus.DispatchCommand(ctx, cqrs.CmdModelDraft, &cqrs.ModelDraftCreate{
			Content: bootstrapModel, Remark: &remark, UID: "system",
		})
		if err != nil {
			return fmt.Errorf("failed to create starter model draft: %w", err)
		}
		created := out.(*dto.ModelConfigDTO)
		draftID, draftVersion = created.ID, created.Version
		log.Printf("Created starter model draft (version %d)", draftVersion)
	}

	if _, err := a.Bus.DispatchCommand(ctx, cqrs.CmdModelPublish, &cqrs.ModelPublish{
		ID: draftID, UID: "system",
	}); err != nil {
		return fmt.Errorf("failed to publish model version %d: %w", draftVersion, err)
	}
	log.Printf("Published model version %d", draftVersion)
	return nil
}

func init() {
	bootstrapCmd.Flags().StringVar(&bootstrapUsername, "username", "admin", "Username of the administrator")
	bootstrapCmd.Flags().StringVar(&bootstrapPassword, "password", "", "Password of the administrator (required)")
	bootstrapCmd.Flags().StringVar(&bootstrapDomain, "domain", "", "Tenant domain of the administrator")
	bootstrapCmd.Flags().StringVar(&bootstrapRole, "role", "iam-admin", "Role granted full admin-API access")

	rootCmd.AddCommand(bootstrapCmd)
}
