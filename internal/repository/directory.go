package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/go-alert-dispatch/internal/models"
)

// AddCommunity and AddMember seed the directory. Membership is owned by
// the community management side of the product; the dispatcher only reads it.
func (s *SQLiteDB) AddCommunity(ctx context.Context, c *models.Community) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO communities (id, name, leader_id) VALUES (?, ?, ?)`,
		c.ID, c.Name, c.LeaderID)
	if err != nil {
		return fmt.Errorf("error adding community %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteDB) AddMember(ctx context.Context, m *models.Member) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO community_members (community_id, user_id, name, email, phone)
		VALUES (?, ?, ?, ?, ?)`,
		m.CommunityID, m.ID, m.Name, m.Email, m.Phone)
	if err != nil {
		return fmt.Errorf("error adding member %s to %s: %w", m.ID, m.CommunityID, err)
	}
	return nil
}

func (s *SQLiteDB) RemoveMember(ctx context.Context, communityID, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM community_members WHERE community_id = ? AND user_id = ?`,
		communityID, userID)
	if err != nil {
		return fmt.Errorf("error removing member %s from %s: %w", userID, communityID, err)
	}
	return nil
}

// MembersOf returns the roster in insertion order. An unknown community
// yields an empty roster.
func (s *SQLiteDB) MembersOf(ctx context.Context, communityID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, name, email, phone, community_id
		FROM community_members WHERE community_id = ? ORDER BY rowid`, communityID)
	if err != nil {
		return nil, fmt.Errorf("error listing members of %s: %w", communityID, err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.CommunityID); err != nil {
			return nil, fmt.Errorf("error scanning member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (s *SQLiteDB) CommunitiesLedBy(ctx context.Context, senderID string) ([]models.Community, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.name, c.leader_id, COUNT(m.user_id)
		FROM communities c
		LEFT JOIN community_members m ON m.community_id = c.id
		WHERE c.leader_id = ?
		GROUP BY c.id
		ORDER BY c.rowid`, senderID)
	if err != nil {
		return nil, fmt.Errorf("error listing communities led by %s: %w", senderID, err)
	}
	defer rows.Close()

	var communities []models.Community
	for rows.Next() {
		var c models.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.LeaderID, &c.MemberCount); err != nil {
			return nil, fmt.Errorf("error scanning community: %w", err)
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating communities: %w", err)
	}
	return communities, nil
}
