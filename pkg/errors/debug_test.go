package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/minio/minio-go/v7"
)

func TestDumpStorageError(t *testing.T) {
	storageErr := minio.ErrorResponse{
		Code:       "AccessDenied",
		Message:    "Access Denied.",
		BucketName: "chrome-hearts",
		Key:        "products/abc-ring.jpg",
		StatusCode: http.StatusForbidden,
	}
	err := Wrap(CodeUpstream, fmt.Errorf("presign: %w", storageErr), "failed to generate upload URL")

	d := Dump(err)
	if d.Code != CodeUpstream || !d.Retryable {
		t.Fatalf("unexpected code fields %+v", d)
	}
	if d.StorageCode != "AccessDenied" || d.StorageBucket != "chrome-hearts" || d.StorageStatus != http.StatusForbidden {
		t.Fatalf("storage fields not extracted: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected three chain entries, got %v", d.Chain)
	}
}

func TestDumpPostgresError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "listings_pkey", TableName: "listings"}
	d := Dump(Wrap(CodeInternal, pgErr, "failed to create listing"))
	if d.PGCode != "23505" || d.PGConstraint != "listings_pkey" || d.PGTable != "listings" {
		t.Fatalf("pg fields not extracted: %+v", d)
	}
}

func TestDumpNil(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || d.Chain != nil {
		t.Fatalf("expected empty dump, got %+v", d)
	}
}
