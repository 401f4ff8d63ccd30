// Command seed provisions demo accounts and rooms in a local store and
// prints ready-to-use connection tokens.
package main

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"chat-hub/auth"
	"chat-hub/domain"
	"chat-hub/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	names := flag.String("users", "alice,bob,clara", "Comma-separated usernames to create")
	password := flag.String("password", "password123", "Password shared by the demo accounts")
	tokenTTL := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	rooms := repositories.NewRoomRepository(db)

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatal("Error hashing password: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Username", "User ID", "Token"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	var created []domain.User
	for _, name := range strings.Split(*names, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		user, err := users.CreateUser(domain.User{
			Username:     name,
			Email:        name + "@example.com",
			PasswordHash: hash,
			Settings:     domain.DefaultSettings(),
		})
		if err != nil {
			// Rerunning against the same store: reuse the existing account.
			user, err = users.GetUserByUsername(name)
			if err != nil {
				log.Fatalf("Error creating user %s: %v", name, err)
			}
		}
		created = append(created, user)

		token, err := auth.GenerateToken(user.ID.String(), user.Username, *tokenTTL)
		if err != nil {
			log.Fatal("Error generating token: ", err)
		}
		table.Append([]string{user.Username, user.ID.String(), token})
	}

	if len(created) >= 2 {
		admin := created[0]
		ids := make([]uuid.UUID, 0, len(created))
		for _, u := range created {
			ids = append(ids, u.ID)
		}
		room, err := rooms.CreateRoom(domain.Room{
			Name:         "lobby",
			Description:  "Seeded demo room",
			IsGroup:      true,
			Participants: ids,
			Admin:        &admin.ID,
		})
		if err == nil {
			log.Printf("Created group room %q (%s)", room.Name, room.ID)
		}
	}

	table.Render()
}
