// Package main implements the sift-admin provisioning tool. It writes
// directly to the sift database: users, projects, and memberships are
// provisioned out of band, never through the API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/siftlog/sift/internal/auth"
	"github.com/siftlog/sift/internal/config"
	"github.com/siftlog/sift/internal/project"
	"github.com/siftlog/sift/internal/store"
	"github.com/siftlog/sift/pkg/types"
)

func usage() {
	fmt.Fprintf(os.Stderr, "sift-admin - provisioning tool for the sift database\n\n")
	fmt.Fprintf(os.Stderr, "Usage: sift-admin <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  adduser     -data-dir DIR -username NAME -password SECRET\n")
	fmt.Fprintf(os.Stderr, "  addproject  -data-dir DIR -name NAME [-id ID] [-api-key KEY]\n")
	fmt.Fprintf(os.Stderr, "  grant       -data-dir DIR -project ID -subject ID\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "adduser":
		err = addUser(os.Args[2:])
	case "addproject":
		err = addProject(os.Args[2:])
	case "grant":
		err = grant(os.Args[2:])
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sift-admin: %v\n", err)
		os.Exit(1)
	}
}

// openDB opens the sift database under dataDir, creating the schema if
// needed so provisioning can run before the first server start.
func openDB(dataDir string) (*store.DB, error) {
	cfg := config.DefaultConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	config.LoadFromEnv(cfg)
	cfg.Resolve()
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return store.Open(cfg.DatabasePath(), store.DefaultOptions())
}

func addUser(args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ExitOnError)
	dataDir := fs.String("data-dir", "", "Base directory for data files")
	username := fs.String("username", "", "Login username")
	password := fs.String("password", "", "Login password (hashed with bcrypt before storage)")
	fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("username and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	db, err := openDB(*dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	subjectID := uuid.NewString()
	err = auth.NewStore(db).Create(context.Background(), &auth.Credential{
		Username:     *username,
		PasswordHash: string(hash),
		SubjectID:    subjectID,
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("user created\n  username: %s\n  subject:  %s\n", *username, subjectID)
	return nil
}

func addProject(args []string) error {
	fs := flag.NewFlagSet("addproject", flag.ExitOnError)
	dataDir := fs.String("data-dir", "", "Base directory for data files")
	name := fs.String("name", "", "Project display name")
	id := fs.String("id", "", "Project ID (generated if empty)")
	apiKey := fs.String("api-key", "", "Ingest API key (generated if empty)")
	fs.Parse(args)

	if *name == "" {
		return fmt.Errorf("name is required")
	}
	if *id == "" {
		*id = uuid.NewString()
	}
	if *apiKey == "" {
		*apiKey = uuid.NewString()
	}

	db, err := openDB(*dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	err = project.NewRegistry(db).Create(context.Background(),
		types.Project{ID: *id, Name: *name}, *apiKey)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	fmt.Printf("project created\n  id:      %s\n  name:    %s\n  api key: %s\n", *id, *name, *apiKey)
	return nil
}

func grant(args []string) error {
	fs := flag.NewFlagSet("grant", flag.ExitOnError)
	dataDir := fs.String("data-dir", "", "Base directory for data files")
	projectID := fs.String("project", "", "Project ID")
	subjectID := fs.String("subject", "", "Subject ID of the user")
	fs.Parse(args)

	if *projectID == "" || *subjectID == "" {
		return fmt.Errorf("project and subject are required")
	}

	db, err := openDB(*dataDir)
	if err != nil {
		return err
	}
	defer db.Close()

	err = project.NewRegistry(db).Grant(context.Background(), *projectID, *subjectID)
	if err != nil {
		return fmt.Errorf("failed to grant membership: %w", err)
	}

	fmt.Printf("granted %s access to %s\n", *subjectID, *projectID)
	return nil
}
