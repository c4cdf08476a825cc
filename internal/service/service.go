package service

import (
	"github.com/atalarczyk/PPLAN/internal/config"
	"github.com/atalarczyk/PPLAN/internal/repository"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services bundles the whole business layer.
type Services struct {
	Access   *AccessService
	Planning *PlanningService
	Finance  *FinanceService
	Report   *ReportService
	Export   *ExportService
}

// NewServices wires everything. Redis and MinIO are optional: without
// redis the scope resolver hits the database every time, without MinIO
// exports are not archived.
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO client init failed, exports will not be archived", zap.Error(err))
			minioClient = nil
		}
	}

	accessSvc := NewAccessService(repos, rdb, cfg.Planning.ScopeCacheTTL, logger)
	planningSvc := NewPlanningService(db, repos, accessSvc, cfg.Planning.FTEMonthDivisor, logger)
	financeSvc := NewFinanceService(db, repos, accessSvc, planningSvc, logger)
	reportSvc := NewReportService(repos, accessSvc, cfg.Planning.FTEMonthDivisor, logger)
	exportSvc := NewExportService(reportSvc, minioClient, cfg.MinIO.Bucket, logger)

	return &Services{
		Access:   accessSvc,
		Planning: planningSvc,
		Finance:  financeSvc,
		Report:   reportSvc,
		Export:   exportSvc,
	}
}
