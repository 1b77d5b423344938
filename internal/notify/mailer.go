package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/slot-booking/internal/model"
)

// MailerConfig is the presentation side of the booking policy.
type MailerConfig struct {
	FromName    string
	Location    string
	Timezone    string
	AdminEmails []string
}

// Mailer renders messages for booking events and hands them to the
// Dispatcher.
type Mailer struct {
	d   *Dispatcher
	tpl templates
	cfg MailerConfig
}

// NewMailer parses the templates once.
func NewMailer(d *Dispatcher, cfg MailerConfig) (*Mailer, error) {
	tpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Mailer{d: d, tpl: tpl, cfg: cfg}, nil
}

// DateLabel formats a YYYY-MM-DD date with its weekday.  Unparsable input
// is returned unchanged.
func DateLabel(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Mon 2006-01-02")
}

func when(date, start, end string) string {
	return fmt.Sprintf("%s %s - %s", DateLabel(date), start, end)
}

// participant is the data every participant-facing template receives.
type participant struct {
	Name     string
	When     string
	Timezone string
	Location string
	FromName string
	Lines    []string
}

func (m *Mailer) participant(name, date, start, end string) participant {
	return participant{
		Name:     name,
		When:     when(date, start, end),
		Timezone: m.cfg.Timezone,
		Location: m.cfg.Location,
		FromName: m.cfg.FromName,
	}
}

func (m *Mailer) send(ctx context.Context, typ model.MailType, to, tpl string, data any, ics string, meta map[string]string) (Delivery, error) {
	subject, body, err := m.tpl.render(tpl, data)
	if err != nil {
		return "", err
	}
	return m.d.Enqueue(ctx, model.MailMessage{Type: typ, To: to, Subject: subject, Body: body, ICS: ics, Meta: meta})
}

// Receipt acknowledges a registration covering slots.
func (m *Mailer) Receipt(ctx context.Context, name, email string, slots []model.Slot) error {
	data := participant{Name: name, FromName: m.cfg.FromName}
	for _, s := range slots {
		data.Lines = append(data.Lines, when(s.Date, s.Start, s.End))
	}
	_, err := m.send(ctx, model.MailReceipt, email, tplReceipt, data, "", nil)
	return err
}

// Confirmed tells reg that its slot is confirmed and attaches a calendar
// invite.
func (m *Mailer) Confirmed(ctx context.Context, reg model.Registration, slot model.Slot) error {
	ics := ICS(Event{
		Title:       "Slot booking",
		Date:        slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		Location:    m.cfg.Location,
		Description: "Confirmed booking",
		Timezone:    m.cfg.Timezone,
	})
	_, err := m.send(ctx, model.MailConfirm, reg.Email, tplConfirm,
		m.participant(reg.Name, slot.Date, slot.Start, slot.End), ics,
		map[string]string{"registration_id": reg.ID, "slot_id": slot.ID})
	return err
}

// Reminder sends the day-before reminder.
func (m *Mailer) Reminder(ctx context.Context, reg model.Registration, slot model.Slot) error {
	_, err := m.send(ctx, model.MailReminder, reg.Email, tplReminder,
		m.participant(reg.Name, slot.Date, slot.Start, slot.End), "",
		map[string]string{"registration_id": reg.ID, "slot_id": slot.ID})
	return err
}

// Cancelled confirms to the person which of their bookings were removed.
func (m *Mailer) Cancelled(ctx context.Context, name, email string, regs []model.Registration) error {
	data := participant{Name: name, FromName: m.cfg.FromName}
	for _, r := range regs {
		data.Lines = append(data.Lines, when(r.Date, r.Start, r.End))
	}
	_, err := m.send(ctx, model.MailCancel, email, tplCancelled, data, "", nil)
	return err
}

// SlotCanceled tells a confirmed person that their slot was dropped.
func (m *Mailer) SlotCanceled(ctx context.Context, reg model.Registration, slot model.Slot) error {
	_, err := m.send(ctx, model.MailCancel, reg.Email, tplSlotCanceled,
		m.participant(reg.Name, reg.Date, reg.Start, reg.End), "",
		map[string]string{"slot_id": slot.ID})
	return err
}

// AdminConfirmed sends the confirmed participant list of slot to every
// administrator.
func (m *Mailer) AdminConfirmed(ctx context.Context, slot model.Slot, members []model.Registration) error {
	data := struct {
		When, Timezone, Location string
		Members                  []model.Registration
	}{when(slot.Date, slot.Start, slot.End), m.cfg.Timezone, m.cfg.Location, members}
	return m.toAdmins(ctx, tplAdminConfirm, data)
}

type digestData struct {
	Digest model.Digest
}

func (digestData) DateLabel(date string) string { return DateLabel(date) }

// AdminDigest sends the daily overview to every administrator.
func (m *Mailer) AdminDigest(ctx context.Context, d model.Digest) error {
	return m.toAdmins(ctx, tplAdminDigest, digestData{Digest: d})
}

func (m *Mailer) toAdmins(ctx context.Context, tpl string, data any) error {
	var errs []error
	for _, addr := range m.cfg.AdminEmails {
		if _, err := m.send(ctx, model.MailAdmin, addr, tpl, data, "", nil); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HasAdmins reports whether any administrator address is configured.
func (m *Mailer) HasAdmins() bool { return len(m.cfg.AdminEmails) > 0 }

// Flush delivers queued messages.
func (m *Mailer) Flush(ctx context.Context) (model.FlushReport, error) {
	return m.d.Flush(ctx)
}
