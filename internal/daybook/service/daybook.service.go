package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dumpzone/internal/daybook/model"
	"dumpzone/internal/daybook/repository"
	"dumpzone/socket"
)

type DaybookService struct {
	Repo *repository.DaybookRepository
	Hub  *socket.Hub
}

func NewDaybookService(repo *repository.DaybookRepository, hub *socket.Hub) *DaybookService {
	return &DaybookService{Repo: repo, Hub: hub}
}

func (s *DaybookService) GetDay(userID, date string) (*model.DayDocument, error) {
	if date == "" {
		return nil, errors.New("date is required")
	}
	return s.Repo.GetDay(userID, date)
}

// SaveDay upserts the user's document for one day and fans the new state out
// to the user's other devices. A write older than the stored document is
// dropped by the repository's last-write-wins guard and not broadcast.
func (s *DaybookService) SaveDay(userID string, req model.SaveDayRequest) (*model.SaveDayResponse, error) {
	if req.Date == "" {
		return nil, errors.New("date is required")
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = time.Now().UTC()
	}

	doc := &model.DayDocument{
		UserID:     userID,
		Date:       req.Date,
		Content:    req.Content,
		UpdatedAt:  req.UpdatedAt,
		ClientID:   req.ClientID,
		MutationID: req.MutationID,
	}

	applied, err := s.Repo.UpsertDay(doc)
	if err != nil {
		return nil, err
	}

	if applied {
		payload, _ := json.Marshal(doc)
		s.Hub.Broadcast <- socket.WSMessage{
			Type:       socket.DayUpdateType,
			UserID:     userID,
			ClientID:   req.ClientID,
			MutationID: req.MutationID,
			Payload:    payload,
		}
	}
	return &model.SaveDayResponse{UpdatedAt: doc.UpdatedAt, Applied: applied}, nil
}

func (s *DaybookService) ClearDay(userID, date string) error {
	if date == "" {
		return errors.New("date is required")
	}
	if err := s.Repo.DeleteDay(userID, date); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]string{"date": date})
	s.Hub.Broadcast <- socket.WSMessage{
		Type:    socket.DayClearType,
		UserID:  userID,
		Payload: payload,
	}
	return nil
}

func (s *DaybookService) ListEntries(userID string) ([]model.Entry, error) {
	return s.Repo.ListEntries(userID)
}

func (s *DaybookService) AddEntry(userID string, e *model.Entry) error {
	if e.Date == "" || e.Content == "" {
		return errors.New("date and content are required")
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("%s-%d", e.Date, time.Now().UnixMilli())
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}

	if err := s.Repo.InsertEntry(userID, e); err != nil {
		return err
	}

	payload, _ := json.Marshal(e)
	s.Hub.Broadcast <- socket.WSMessage{
		Type:    socket.EntryAddedType,
		UserID:  userID,
		Payload: payload,
	}
	return nil
}

func (s *DaybookService) UpdateEntry(userID, entryID string, update model.EntryUpdate) (bool, error) {
	ok, err := s.Repo.UpdateEntry(userID, entryID, update)
	if err != nil || !ok {
		return ok, err
	}

	// Broadcast the post-update state so other devices don't have to refetch.
	entry, err := s.Repo.GetEntry(userID, entryID)
	if err == nil && entry != nil {
		payload, _ := json.Marshal(entry)
		s.Hub.Broadcast <- socket.WSMessage{
			Type:    socket.EntryUpdatedType,
			UserID:  userID,
			Payload: payload,
		}
	}
	return true, nil
}

func (s *DaybookService) DeleteEntry(userID, entryID string) (bool, error) {
	ok, err := s.Repo.DeleteEntry(userID, entryID)
	if err != nil || !ok {
		return ok, err
	}

	payload, _ := json.Marshal(map[string]string{"id": entryID})
	s.Hub.Broadcast <- socket.WSMessage{
		Type:    socket.EntryDeletedType,
		UserID:  userID,
		Payload: payload,
	}
	return true, nil
}
