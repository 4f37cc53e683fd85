package services

import (
	"ilearnz_go/database"
	"ilearnz_go/middleware"
	"ilearnz_go/models"
	"ilearnz_go/storage"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MaintenanceService runs the nightly background jobs: orphaned blob
// cleanup, denormalized school counters, and flushing buffered activity
// logs out of Redis.
type MaintenanceService struct {
	cron *cron.Cron
}

func NewMaintenanceService() *MaintenanceService {
	return &MaintenanceService{cron: cron.New()}
}

// Start schedules the sweeps. Blob GC and counter refresh run nightly,
// the log flush every ten minutes.
func (ms *MaintenanceService) Start() error {
	if _, err := ms.cron.AddFunc("0 3 * * *", ms.RunNightly); err != nil {
		return err
	}
	if _, err := ms.cron.AddFunc("*/10 * * * *", ms.flushLogs); err != nil {
		return err
	}
	ms.cron.Start()
	logrus.Info("Maintenance sweeps scheduled")
	return nil
}

func (ms *MaintenanceService) Stop() {
	ms.cron.Stop()
}

// RunNightly executes the full sweep once. Exported so an operator can
// trigger it via the admin endpoint.
func (ms *MaintenanceService) RunNightly() {
	ms.sweepOrphanedBlobs()
	ms.refreshSchoolCounters()
	ms.flushLogs()
}

// sweepOrphanedBlobs deletes stored files whose owning rows were
// soft-deleted, then clears file_path so the row is not revisited.
func (ms *MaintenanceService) sweepOrphanedBlobs() {
	storageService, err := storage.NewStorageService()
	if err != nil {
		logrus.WithError(err).Warn("Blob sweep skipped, storage unavailable")
		return
	}

	type target struct {
		model interface{}
		field string
	}
	targets := []target{
		{&models.ReadingMaterial{}, "file_path"},
		{&models.Assessment{}, "attachment_path"},
		{&models.AssessmentSubmission{}, "file_path"},
		{&models.Report{}, "file_path"},
	}

	swept := 0
	for _, t := range targets {
		type row struct {
			ID   uint
			Path string
		}
		var rows []row
		if err := database.DB.Unscoped().Model(t.model).
			Select("id, "+t.field+" AS path").
			Where("deleted_at IS NOT NULL AND "+t.field+" <> ''").
			Scan(&rows).Error; err != nil {
			logrus.WithError(err).Warn("Blob sweep query failed")
			continue
		}
		for _, r := range rows {
			if err := storageService.DeleteFile(r.Path); err != nil {
				logrus.WithError(err).WithField("key", r.Path).Warn("Blob delete failed, will retry next sweep")
				continue
			}
			database.DB.Unscoped().Model(t.model).Where("id = ?", r.ID).Update(t.field, "")
			swept++
		}
	}
	logrus.WithField("deleted", swept).Info("Orphaned blob sweep finished")
}

// refreshSchoolCounters recomputes the denormalized student and teacher
// counts on every school.
func (ms *MaintenanceService) refreshSchoolCounters() {
	var schools []models.School
	if err := database.DB.Find(&schools).Error; err != nil {
		logrus.WithError(err).Warn("Counter refresh query failed")
		return
	}

	for _, school := range schools {
		var students, teachers int64
		database.DB.Model(&models.User{}).
			Where("school_id = ? AND role = ? AND active = ?", school.ID, models.RoleStudent, true).
			Count(&students)
		database.DB.Model(&models.User{}).
			Where("school_id = ? AND role = ? AND active = ?", school.ID, models.RoleTeacher, true).
			Count(&teachers)

		if int(students) != school.StudentCount || int(teachers) != school.TeacherCount {
			database.DB.Model(&models.School{}).Where("id = ?", school.ID).Updates(map[string]interface{}{
				"student_count": students,
				"teacher_count": teachers,
			})
		}
	}
	logrus.WithField("schools", len(schools)).Info("School counters refreshed")
}

func (ms *MaintenanceService) flushLogs() {
	flushed, err := middleware.FlushCachedLogs()
	if err != nil {
		logrus.WithError(err).Warn("Activity log flush failed")
		return
	}
	if flushed > 0 {
		logrus.WithField("flushed", flushed).Info("Buffered activity logs written")
	}
}
