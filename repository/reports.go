package repository

import (
	"time"

	"cityreport/idgen"
	"cityreport/models"
	"cityreport/store"

	"github.com/sirupsen/logrus"
)

// ReportSyncer receives newly created reports for background upload.
type ReportSyncer interface {
	Push(report models.Report)
}

// ReportRepository manages citizen reports.
type ReportRepository struct {
	col  *Collection[models.Report]
	sync ReportSyncer
	now  func() time.Time
	log  logrus.FieldLogger
}

// NewReportRepository creates a ReportRepository. syncer may be nil.
func NewReportRepository(s *store.LocalStore, syncer ReportSyncer, opts ...Option) *ReportRepository {
	o := newOptions(opts)
	return &ReportRepository{
		col:  NewCollection[models.Report](s, store.KeyReports),
		sync: syncer,
		now:  o.now,
		log:  o.log.WithField("repository", "reports"),
	}
}

// Create stores a new report with defaults applied and hands it to the syncer.
func (r *ReportRepository) Create(in models.ReportInput) models.Report {
	now := r.now().UTC()

	report := models.Report{
		Category:          in.Category,
		Description:       in.Description,
		LocationText:      in.LocationText,
		Latitude:          in.Latitude,
		Longitude:         in.Longitude,
		LocationAccuracy:  in.LocationAccuracy,
		LocationTimestamp: utcPtr(in.LocationTimestamp),
		Status:            in.Status,
		Priority:          in.Priority,
		CitizenName:       in.CitizenName,
		CitizenEmail:      in.CitizenEmail,
		PhotosCount:       in.PhotosCount,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if !report.Status.Valid() {
		report.Status = models.StatusNew
	}
	if !report.Priority.Valid() {
		report.Priority = models.PriorityMedium
	}
	if report.PhotosCount < 0 {
		report.PhotosCount = 0
	}

	for {
		report.ID = idgen.NewFromTime(now)
		if r.col.Insert(report) {
			break
		}
	}

	r.log.WithFields(logrus.Fields{"report_id": report.ID, "category": report.Category}).Info("report created")

	if r.sync != nil {
		r.sync.Push(report)
	}
	return report
}

// GetAll returns every report in creation order.
func (r *ReportRepository) GetAll() []models.Report {
	return r.col.All()
}

// GetByID returns the report or nil.
func (r *ReportRepository) GetByID(id string) *models.Report {
	report, ok := r.col.Get(id)
	if !ok {
		return nil
	}
	return &report
}

// Update merges the non-nil fields of patch and returns the result, or nil
// if no report has that id.
func (r *ReportRepository) Update(id string, patch models.ReportPatch) *models.Report {
	updated, ok := r.col.Modify(id, func(rep *models.Report) {
		applyReportPatch(rep, patch)
		rep.UpdatedAt = touch(rep.UpdatedAt, r.now())
	})
	if !ok {
		return nil
	}
	return &updated
}

// SeedIfEmpty stores records when no report exists yet.
func (r *ReportRepository) SeedIfEmpty(records []models.Report) bool {
	return r.col.SeedIfEmpty(records)
}

// Delete removes the report and reports whether it existed.
func (r *ReportRepository) Delete(id string) bool {
	return r.col.Remove(id)
}

// CountByStatus tallies reports per status.
func (r *ReportRepository) CountByStatus() map[models.ReportStatus]int {
	counts := map[models.ReportStatus]int{
		models.StatusNew:        0,
		models.StatusInProgress: 0,
		models.StatusResolved:   0,
	}
	for _, rep := range r.col.All() {
		counts[rep.Status]++
	}
	return counts
}

func applyReportPatch(rep *models.Report, p models.ReportPatch) {
	if p.Category != nil {
		rep.Category = *p.Category
	}
	if p.Description != nil {
		rep.Description = *p.Description
	}
	if p.LocationText != nil {
		rep.LocationText = *p.LocationText
	}
	if p.Latitude != nil {
		rep.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		rep.Longitude = p.Longitude
	}
	if p.LocationAccuracy != nil {
		rep.LocationAccuracy = p.LocationAccuracy
	}
	if p.LocationTimestamp != nil {
		rep.LocationTimestamp = utcPtr(p.LocationTimestamp)
	}
	if p.Status != nil && p.Status.Valid() {
		rep.Status = *p.Status
	}
	if p.Priority != nil && p.Priority.Valid() {
		rep.Priority = *p.Priority
	}
	if p.CitizenName != nil {
		rep.CitizenName = *p.CitizenName
	}
	if p.CitizenEmail != nil {
		rep.CitizenEmail = *p.CitizenEmail
	}
	if p.PhotosCount != nil && *p.PhotosCount >= 0 {
		rep.PhotosCount = *p.PhotosCount
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
