package main

import (
	"collective/backend/internal/account"
	"collective/backend/internal/config"
	"collective/backend/internal/messaging"
	"collective/backend/internal/models"
	"collective/backend/internal/storage"
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// adminIdentity is the actor used for CLI operations; the operator already has DB access.
var adminIdentity = models.Identity{ID: "cli", Email: "cli@localhost", Role: models.RoleAdmin}

func main() {
	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	storageSvc := storage.NewStorageService(db, nil) // No redis needed for admin CLI

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	accounts := account.NewService(storageSvc)
	_, messages := messaging.NewEngines(storageSvc)

	command := os.Args[1]

	switch command {
	case "list-users":
		if err := listUsers(ctx, accounts); err != nil {
			log.Fatalf("Error listing users: %v", err)
		}
	case "set-role":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin set-role <user_id> <COMPANY|INVESTOR|ADMIN>")
			os.Exit(1)
		}
		userID, role := os.Args[2], models.Role(os.Args[3])
		if err := accounts.AssignRole(ctx, userID, role); err != nil {
			log.Fatalf("Error setting role: %v", err)
		}
		fmt.Printf("User %s is now %s.\n", userID, role)
	case "delete-user":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin delete-user <user_id>")
			os.Exit(1)
		}
		if err := accounts.Delete(ctx, adminIdentity, os.Args[2]); err != nil {
			log.Fatalf("Error deleting user: %v", err)
		}
		fmt.Printf("User %s deleted.\n", os.Args[2])
	case "recent-messages":
		limit := config.MonitorMessageLimit
		if len(os.Args) > 2 {
			limit, err = strconv.Atoi(os.Args[2])
			if err != nil || limit <= 0 {
				fmt.Println("Invalid limit. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		if err := recentMessages(ctx, messages, limit); err != nil {
			log.Fatalf("Error reading messages: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  list-users")
	fmt.Println("  set-role <user_id> <COMPANY|INVESTOR|ADMIN>")
	fmt.Println("  delete-user <user_id>")
	fmt.Println("  recent-messages [limit]")
}

func listUsers(ctx context.Context, accounts *account.Service) error {
	users, err := accounts.ListUsers(ctx, adminIdentity)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func recentMessages(ctx context.Context, messages *messaging.MessageService, limit int) error {
	msgs, err := messages.Recent(ctx, adminIdentity, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SENT\tFROM\tTO\tREAD\tCONTENT")
	for _, m := range msgs {
		read := "-"
		if m.ReadAt != nil {
			read = m.ReadAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%q\n", m.SentAt.Format(time.RFC3339), m.SenderEmail, m.RecipientEmail, read, m.Content)
	}
	return w.Flush()
}
