package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the local membership directory",
}

var addCommunityCmd = &cobra.Command{
	Use:   "add-community <community-id>",
	Short: "Register a community and its leader",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddCommunity,
}

var addMemberCmd = &cobra.Command{
	Use:   "add-member <community-id> <member-id>",
	Short: "Add a member to a community roster",
	Args:  cobra.ExactArgs(2),
	RunE:  runAddMember,
}

var removeMemberCmd = &cobra.Command{
	Use:   "remove-member <community-id> <member-id>",
	Short: "Remove a member from a community roster",
	Args:  cobra.ExactArgs(2),
	RunE:  runRemoveMember,
}

func init() {
	rootCmd.AddCommand(directoryCmd)
	directoryCmd.AddCommand(addCommunityCmd, addMemberCmd, removeMemberCmd)

	addCommunityCmd.Flags().String("name", "", "Community name")
	addCommunityCmd.Flags().String("leader", "", "Leader (sender) id")
	_ = addCommunityCmd.MarkFlagRequired("leader")

	addMemberCmd.Flags().String("name", "", "Member name")
	addMemberCmd.Flags().String("email", "", "Email address")
	addMemberCmd.Flags().String("phone", "", "Phone number")
}

func runAddCommunity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	name, _ := cmd.Flags().GetString("name")
	leader, _ := cmd.Flags().GetString("leader")
	if name == "" {
		name = args[0]
	}

	if err := db.AddCommunity(cmd.Context(), &models.Community{ID: args[0], Name: name, LeaderID: leader}); err != nil {
		return fmt.Errorf("add community: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Community %s led by %s\n", args[0], leader)
	return nil
}

func runAddMember(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	phone, _ := cmd.Flags().GetString("phone")

	m := &models.Member{ID: args[1], Name: name, Email: email, Phone: phone, CommunityID: args[0]}
	if err := db.AddMember(cmd.Context(), m); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Member %s added to %s\n", m.ID, m.CommunityID)
	return nil
}

func runRemoveMember(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RemoveMember(cmd.Context(), args[0], args[1]); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Member %s removed from %s\n", args[1], args[0])
	return nil
}
