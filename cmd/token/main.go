package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"ContactBook/config"
	"ContactBook/internal/model"
	"ContactBook/internal/repository"
	"ContactBook/pkg/token"
	"ContactBook/storage/database"
)

// token 为本地开发签发访问令牌，-seed 同时在数据库中创建该用户
func main() {
	userID := flag.String("user", "", "user id (uuid); generated when empty")
	seed := flag.Bool("seed", false, "insert the user into the database")
	name := flag.String("name", "dev", "display name used with -seed")
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	} else if _, err := uuid.Parse(*userID); err != nil {
		fail("invalid -user: %v", err)
	}

	if err := config.Validate(); err != nil {
		fail("invalid configuration: %v", err)
	}

	if *seed {
		if err := seedUser(*userID, *name); err != nil {
			fail("seed user: %v", err)
		}
	}

	if err := token.Init(); err != nil {
		fail("%v", err)
	}

	signed, expiresAt, err := token.GenerateAccessToken(*userID)
	if err != nil {
		fail("%v", err)
	}

	fmt.Printf("user_id:    %s\n", *userID)
	fmt.Printf("expires_at: %s\n", expiresAt.UTC().Format(time.RFC3339))
	fmt.Printf("token:      %s\n", signed)
}

func seedUser(userID, name string) error {
	if err := database.Init(); err != nil {
		return err
	}
	defer func() { _ = database.Close(context.Background()) }()

	users := repository.NewUserRepository(database.DB())
	exists, err := users.Exists(context.Background(), userID)
	if err != nil || exists {
		return err
	}
	return users.Create(context.Background(), &model.User{
		ID:    userID,
		Name:  name,
		Email: userID + "@local.dev",
	})
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "token: "+format+"\n", args...)
	os.Exit(1)
}
