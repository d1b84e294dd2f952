package store

import (
	"fmt"

	"udb/internal/domain"
)

// referenceFields maps change-set fields holding a foreign id to the
// kind of the referenced row. Their diffs store display names so the
// audit trail stays readable after renames.
var referenceFields = map[string]domain.Kind{
	"owner_id": domain.KindUser,
	"vrf_id":   domain.KindVrf,
}

// writeMessages appends the audit trail of the commit: one message of
// type new or dirty per written entity, comments, and parent touches.
func (sess *Session) writeMessages() error {
	for _, it := range sess.items {
		var msgs []*domain.Message
		switch {
		case it.isNew:
			msg := &domain.Message{
				ModelName: it.entity.Kind(),
				ModelID:   it.entity.GetID(),
				AuthorID:  sess.authorID,
				Type:      domain.MessageNew,
			}
			if err := msg.SetChangeSet(sess.resolveReferences(it.changes)); err != nil {
				return err
			}
			msgs = append(msgs, msg)
		case len(it.changes) > 0:
			msg := &domain.Message{
				ModelName: it.entity.Kind(),
				ModelID:   it.entity.GetID(),
				AuthorID:  sess.authorID,
				Type:      domain.MessageDirty,
			}
			if err := msg.SetChangeSet(sess.resolveReferences(it.changes)); err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if it.comment != "" {
			msgs = append(msgs, &domain.Message{
				ModelName: it.entity.Kind(),
				ModelID:   it.entity.GetID(),
				AuthorID:  sess.authorID,
				Type:      domain.MessageComment,
				Body:      it.comment,
			})
		}
		for _, msg := range msgs {
			if err := sess.tx.Create(msg).Error; err != nil {
				return err
			}
			it.messages = append(it.messages, msg)
		}
	}

	for _, p := range sess.parents {
		msg := &domain.Message{
			ModelName: p.ref.Kind,
			ModelID:   p.ref.ID,
			AuthorID:  sess.authorID,
			Type:      domain.MessageParent,
			Body:      p.body,
		}
		if err := sess.tx.Create(msg).Error; err != nil {
			return err
		}
		sess.parentMessages = append(sess.parentMessages, msg)
	}
	return nil
}

// resolveReferences replaces foreign ids in a change set with the
// referenced row's display name.
func (sess *Session) resolveReferences(cs domain.ChangeSet) domain.ChangeSet {
	if len(cs) == 0 {
		return cs
	}
	out := make(domain.ChangeSet, len(cs))
	for field, change := range cs {
		kind, ok := referenceFields[field]
		if !ok {
			out[field] = change
			continue
		}
		out[field] = domain.FieldChange{
			sess.displayName(kind, change[0]),
			sess.displayName(kind, change[1]),
		}
	}
	return out
}

func (sess *Session) displayName(kind domain.Kind, raw any) any {
	if raw == nil {
		return nil
	}
	var id uint
	switch v := raw.(type) {
	case uint:
		id = v
	case int:
		id = uint(v)
	case int64:
		id = uint(v)
	case float64:
		id = uint(v)
	default:
		return raw
	}
	if id == 0 {
		return nil
	}
	info, ok := kinds[kind]
	if !ok {
		return raw
	}
	e := info.newEntity()
	if err := sess.tx.First(e, id).Error; err != nil {
		return fmt.Sprintf("%s #%d", kind, id)
	}
	return e.DisplayName()
}

// collectNotifications aggregates the commit's messages per follower,
// at most one notification per (follower, commit) per entity. Authors
// are not notified about their own changes unless they follow the row.
func (sess *Session) collectNotifications() ([]Notification, error) {
	type target struct {
		ref  Ref
		msgs []*domain.Message
	}
	targets := make([]target, 0, len(sess.items)+len(sess.parentMessages))
	for _, it := range sess.items {
		if len(it.messages) == 0 {
			continue
		}
		targets = append(targets, target{
			ref:  Ref{Kind: it.entity.Kind(), ID: it.entity.GetID()},
			msgs: it.messages,
		})
	}
	for _, msg := range sess.parentMessages {
		targets = append(targets, target{
			ref:  Ref{Kind: msg.ModelName, ID: msg.ModelID},
			msgs: []*domain.Message{msg},
		})
	}

	byUser := make(map[uint]*Notification)
	var order []uint
	for _, t := range targets {
		var followers []domain.Follower
		err := sess.tx.
			Preload("User").
			Where("model_name = ? AND model_id = ?", t.ref.Kind, t.ref.ID).
			Find(&followers).Error
		if err != nil {
			return nil, err
		}
		for _, follower := range followers {
			if follower.User == nil || follower.User.Status == domain.StatusDeleted {
				continue
			}
			n, ok := byUser[follower.UserID]
			if !ok {
				n = &Notification{User: follower.User}
				byUser[follower.UserID] = n
				order = append(order, follower.UserID)
			}
			n.Messages = append(n.Messages, t.msgs...)
		}
	}

	out := make([]Notification, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}
