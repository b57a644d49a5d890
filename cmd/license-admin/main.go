package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ipv-vendor-gateway/config"
	"ipv-vendor-gateway/internal/auth"
	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/license"
)

func usage() {
	fmt.Println("Usage: license-admin <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create -plan <plan> [-email <email>] [-name <name>]   create a license")
	fmt.Println("  list [-limit N]                                       list licenses")
	fmt.Println("  show -key <license-key>                               show one license")
	fmt.Println("  adjust -id <license-id> -amount <n> [-note <text>]    adjust credits")
	fmt.Println("  extra -id <license-id> -amount <n>                    grant extra credits")
	fmt.Println("  revoke -id <license-id>                               revoke a license")
	fmt.Println("  plans                                                 show the plan catalog")
	fmt.Println("  create-admin -username <name> -password <pw> [-role <role>]")
	os.Exit(1)
}

func main() {
	godotenv.Load()
	godotenv.Load(".env")

	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.RunMigrations(ctx); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	repo := database.NewRepository(db)
	licenseManager := license.NewManager(repo, nil, nil)
	creditsManager := credits.NewManager(repo, nil, nil, cfg.CreditsConfig.LowCreditsThreshold)

	switch os.Args[1] {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		plan := fs.String("plan", "trial", "plan name")
		email := fs.String("email", "", "customer email")
		name := fs.String("name", "", "customer name")
		notes := fs.String("notes", "", "internal notes")
		lockDays := fs.Int("lock-days", 0, "days before the site binding can change")
		fs.Parse(os.Args[2:])

		lic, err := licenseManager.Create(ctx, license.CreateParams{
			Plan:          *plan,
			CustomerEmail: *email,
			CustomerName:  *name,
			Notes:         *notes,
			SiteLockDays:  *lockDays,
		})
		if err != nil {
			fmt.Printf("Failed to create license: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("License created\n")
		fmt.Printf("  Key:     %s\n", lic.Key)
		fmt.Printf("  Plan:    %s\n", lic.Plan)
		fmt.Printf("  Credits: %d\n", lic.CreditsRemaining)

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		limit := fs.Int("limit", 25, "max licenses to list")
		fs.Parse(os.Args[2:])

		licenses, err := repo.ListLicenses(ctx, *limit, 0)
		if err != nil {
			fmt.Printf("Failed to list licenses: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%-22s %-10s %-14s %8s %6s\n", "KEY", "STATUS", "PLAN", "CREDITS", "SITES")
		for _, l := range licenses {
			fmt.Printf("%-22s %-10s %-14s %8d %3d/%d\n",
				l.Key, l.Status, l.Plan, l.CreditsRemaining, l.ActivationCount, l.ActivationLimit)
		}
		fmt.Printf("\n%d licenses\n", len(licenses))

	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		key := fs.String("key", "", "license key")
		fs.Parse(os.Args[2:])
		if *key == "" {
			usage()
		}

		lic, err := repo.GetLicenseByKey(ctx, license.NormalizeKey(*key))
		if err != nil {
			fmt.Printf("Lookup failed: %v\n", err)
			os.Exit(1)
		}
		if lic == nil {
			fmt.Println("License not found")
			os.Exit(1)
		}

		fmt.Printf("ID:         %s\n", lic.ID)
		fmt.Printf("Key:        %s\n", lic.Key)
		fmt.Printf("Status:     %s\n", lic.Status)
		fmt.Printf("Plan:       %s\n", lic.Plan)
		fmt.Printf("Credits:    %d remaining (%d/month, %d extra, %d used)\n",
			lic.CreditsRemaining, lic.CreditsMonthly, lic.CreditsExtra, lic.CreditsUsedMonth)
		fmt.Printf("Sites:      %d/%d\n", lic.ActivationCount, lic.ActivationLimit)
		if lic.CustomerEmail != "" {
			fmt.Printf("Customer:   %s <%s>\n", lic.CustomerName, lic.CustomerEmail)
		}
		if lic.CreditsResetDate != nil {
			fmt.Printf("Next reset: %s\n", lic.CreditsResetDate.Format("2006-01-02"))
		}
		if lic.ExpiresAt != nil {
			fmt.Printf("Expires:    %s\n", lic.ExpiresAt.Format("2006-01-02"))
		}

		activations, err := repo.ListActivations(ctx, lic.ID)
		if err == nil && len(activations) > 0 {
			fmt.Println("Activations:")
			for _, a := range activations {
				fmt.Printf("  %-30s %s\n", a.Domain, a.Status)
			}
		}

	case "adjust":
		fs := flag.NewFlagSet("adjust", flag.ExitOnError)
		id := fs.String("id", "", "license id")
		amount := fs.String("amount", "", "signed credit amount")
		note := fs.String("note", "manual adjustment", "ledger note")
		fs.Parse(os.Args[2:])

		n, err := strconv.Atoi(*amount)
		if *id == "" || err != nil || n == 0 {
			usage()
		}

		remaining, err := creditsManager.Adjust(ctx, *id, n, *note)
		if err != nil {
			fmt.Printf("Adjustment failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Credits adjusted by %d, %d remaining\n", n, remaining)

	case "extra":
		fs := flag.NewFlagSet("extra", flag.ExitOnError)
		id := fs.String("id", "", "license id")
		amount := fs.String("amount", "", "extra credits to grant")
		fs.Parse(os.Args[2:])

		n, err := strconv.Atoi(*amount)
		if *id == "" || err != nil || n <= 0 {
			usage()
		}

		remaining, err := creditsManager.AddExtra(ctx, *id, n, "", "granted via license-admin")
		if err != nil {
			fmt.Printf("Grant failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Granted %d extra credits, %d remaining\n", n, remaining)

	case "revoke":
		fs := flag.NewFlagSet("revoke", flag.ExitOnError)
		id := fs.String("id", "", "license id")
		fs.Parse(os.Args[2:])
		if *id == "" {
			usage()
		}

		if err := licenseManager.SetStatus(ctx, *id, database.LicenseStatusRevoked); err != nil {
			fmt.Printf("Revoke failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("License %s revoked\n", *id)

	case "plans":
		fmt.Printf("%-14s %8s %6s %6s\n", "PLAN", "CREDITS", "SITES", "TRIAL")
		for _, p := range license.Plans() {
			trial := "-"
			if p.TrialDays > 0 {
				trial = fmt.Sprintf("%dd", p.TrialDays)
			}
			fmt.Printf("%-14s %8d %6d %6s\n", p.Name, p.CreditsMonthly, p.ActivationLimit, trial)
		}

	case "create-admin":
		fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
		username := fs.String("username", "", "admin username")
		password := fs.String("password", "", "admin password")
		role := fs.String("role", "admin", "admin role")
		fs.Parse(os.Args[2:])
		if *username == "" || *password == "" {
			usage()
		}

		jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
		passwordManager := auth.NewPasswordManager(12, cfg.AuthConfig.MinPasswordLength)
		authService := auth.NewService(repo, jwtManager, passwordManager, nil)

		user, err := authService.CreateAdmin(ctx, *username, *password, *role)
		if err != nil {
			fmt.Printf("Failed to create admin: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Admin user %s created with role %s\n", user.Username, user.Role)

	default:
		usage()
	}
}
