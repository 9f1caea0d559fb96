package seed

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/okian/nextup/internal/domain/model"
	"github.com/okian/nextup/internal/domain/types"
	"github.com/okian/nextup/pkg/logger"
)

// Constants for draft generation.
const (
	dateSpreadDays    = 120 // drafts land between 30 days ago and 90 days ahead
	dateOffsetDays    = 30
	minParticipants   = 20
	participantsRange = 180
)

var (
	titles = []string{
		"Intro to Rust", "Campus Hack Night", "Blood Donation Drive", "AI Paper Reading",
		"Resume Clinic", "Robotics Demo Day", "Open Mic", "Cloud Native Bootcamp",
	}
	venues = []string{"Main Auditorium", "Lab 3", "Seminar Hall B", "Library Annex", "Online"}
	slots  = []string{"9:00 AM", "11:30 AM", "2:00 PM", "5:00 PM", "7:30 PM"}
	hosts  = []struct {
		name string
		kind model.OrganizerType
	}{
		{"ACM Student Chapter", model.OrganizerCollege},
		{"IEEE Branch", model.OrganizerCollege},
		{"Red Cross Society", model.OrganizerCollege},
		{"Acme Corp", model.OrganizerCompany},
		{"Initech", model.OrganizerCompany},
	}
)

// pick returns a uniformly random index below n using crypto/rand.
func pick(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateDrafts builds n valid create requests, each with its own
// idempotency key. Organizers get uuid ids.
func generateDrafts(ctx context.Context, n int, now time.Time, stats *Stats) ([]submission, error) {
	logger.Get().Info(ctx, "generating event drafts", logger.Int("count", n))

	organizerIDs := make([]string, len(hosts))
	for i := range organizerIDs {
		organizerIDs[i] = uuid.NewString()
	}

	out := make([]submission, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during draft generation: %w", err)
		}
		out = append(out, submission{Key: uuid.NewString(), Draft: generateDraft(i, now, organizerIDs)})
	}

	stats.EventsGenerated = len(out)
	return out, nil
}

func generateDraft(i int, now time.Time, organizerIDs []string) types.CreateEventRequest {
	h := pick(len(hosts))
	category := model.Categories[pick(len(model.Categories))]
	date := model.CivilDate(now).AddDate(0, 0, pick(dateSpreadDays)-dateOffsetDays)

	req := types.CreateEventRequest{
		Title:           fmt.Sprintf("%s #%d", titles[pick(len(titles))], i+1),
		Description:     fmt.Sprintf("A %s event hosted by %s.", category, hosts[h].name),
		Date:            date.Format(model.DateLayout),
		Time:            slots[pick(len(slots))],
		Location:        venues[pick(len(venues))],
		OrganizerID:     organizerIDs[h],
		OrganizerName:   hosts[h].name,
		OrganizerType:   string(hosts[h].kind),
		Category:        string(category),
		MaxParticipants: minParticipants + pick(participantsRange),
	}
	if hosts[h].kind == model.OrganizerCompany {
		req.RegistrationLink = model.Optional("https://forms.example.org/" + uuid.NewString())
	}
	if category == model.CategoryWorkshop || category == model.CategoryPaperPresentation {
		req.Certificate = model.Optional("Certificate of participation")
	}
	return req
}
