// The admin command performs moderation tasks directly against the
// database: verifying users, forcing reputation recomputes and closing
// complaints that were handled out of band.
package main

import (
	"fmt"
	"os"

	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	store := storage.NewStorageService(db, nil) // no redis needed for admin tasks

	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "verify":
		requireArgs(3, "admin verify <user_id>")
		if err := setVerified(store, os.Args[2], true); err != nil {
			log.Fatal().Err(err).Msg("failed to verify user")
		}
		fmt.Printf("User %s is now verified.\n", os.Args[2])
	case "unverify":
		requireArgs(3, "admin unverify <user_id>")
		if err := setVerified(store, os.Args[2], false); err != nil {
			log.Fatal().Err(err).Msg("failed to unverify user")
		}
		fmt.Printf("User %s is no longer verified.\n", os.Args[2])
	case "recalc-reputation":
		requireArgs(3, "admin recalc-reputation <user_id>")
		reputation, err := store.RecalculateReputation(os.Args[2])
		if err != nil {
			log.Fatal().Err(err).Msg("failed to recompute reputation")
		}
		fmt.Printf("User %s reputation is now %d.\n", os.Args[2], reputation)
	case "close-complaint":
		requireArgs(3, "admin close-complaint <complaint_id>")
		if err := closeComplaint(store, os.Args[2]); err != nil {
			log.Fatal().Err(err).Msg("failed to close complaint")
		}
		fmt.Printf("Complaint %s has been closed.\n", os.Args[2])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("Usage: admin <verify|unverify|recalc-reputation|close-complaint> [args]")
	os.Exit(1)
}

func requireArgs(n int, usageLine string) {
	if len(os.Args) < n {
		fmt.Println("Usage:", usageLine)
		os.Exit(1)
	}
}

func setVerified(s storage.Storage, userID string, verified bool) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.IsVerified = verified
	return s.UpdateUser(user)
}

func closeComplaint(s storage.Storage, complaintID string) error {
	c, err := s.GetComplaintByID(complaintID)
	if err != nil {
		return err
	}
	c.Status = models.StatusClosed
	return s.SaveComplaint(c)
}
