// Package pg implements the registry remote store on PostgreSQL. It talks
// to the pre-existing umkm/users schema; schema management lives elsewhere.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/registry"
)

// Store is the remote registry backend.
type Store struct {
	db *sql.DB
}

var _ registry.RemoteStore = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for a small service.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle; used by tests.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for readiness pings.
func (s *Store) DB() *sql.DB { return s.db }

var businessColumns = []string{
	"id", "nama_usaha", "pemilik", "nik_pemilik", "no_hp", "alamat_usaha",
	"jenis_usaha", "kategori_usaha", "deskripsi_usaha", "produk",
	"kapasitas_produksi", "satuan_produksi", "periode_operasi", "satuan_periode",
	"hari_kerja_per_minggu", "total_produksi", "rab", "biaya_tetap",
	"biaya_variabel", "modal_awal", "target_pendapatan", "jumlah_karyawan",
	"status", "tanggal_daftar", "created_at", "updated_at", "user_id",
}

func columnList(prefix string) string {
	if prefix == "" {
		return strings.Join(businessColumns, ", ")
	}
	cols := make([]string, len(businessColumns))
	for i, c := range businessColumns {
		cols[i] = prefix + "." + c
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (registry.Business, error) {
	var (
		rec            registry.Business
		nationalID     sql.NullString
		phone          sql.NullString
		address        sql.NullString
		subCategory    sql.NullString
		description    sql.NullString
		product        sql.NullString
		productionUnit sql.NullString
		periodUnit     sql.NullString
		registeredAt   sql.NullTime
		createdAt      sql.NullTime
		updatedAt      sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.OwnerName, &nationalID, &phone, &address,
		&rec.Category, &subCategory, &description, &product,
		&rec.ProductionCapacity, &productionUnit, &rec.OperatingPeriod, &periodUnit,
		&rec.WorkDaysPerWeek, &rec.TotalProduction, &rec.BudgetPlan, &rec.FixedCost,
		&rec.VariableCost, &rec.InitialCapital, &rec.RevenueTarget, &rec.EmployeeCount,
		&rec.Status, &registeredAt, &createdAt, &updatedAt, &rec.OwnerID,
	)
	if err != nil {
		return registry.Business{}, err
	}
	rec.NationalID = nationalID.String
	rec.Phone = phone.String
	rec.Address = address.String
	rec.SubCategory = subCategory.String
	rec.Description = description.String
	rec.Product = product.String
	rec.ProductionUnit = productionUnit.String
	rec.PeriodUnit = periodUnit.String
	rec.RegisteredAt = registeredAt.Time
	rec.CreatedAt = createdAt.Time
	rec.UpdatedAt = updatedAt.Time
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// List resolves owner- or partition-scoped reads. The partition case joins
// through the users table: partition -> registered users -> their records.
// An unscoped call returns nothing; the remote store never answers
// unscoped reads.
func (s *Store) List(ctx context.Context, q registry.Query) ([]registry.Business, error) {
	switch {
	case q.Partition != "":
		return s.queryMany(ctx,
			`select `+columnList("b")+`
			 from umkm b join users u on u.id = b.user_id
			 where u.rw = $1 and u.role = 'user'
			 order by b.created_at desc`, q.Partition)
	case q.OwnerID != "":
		return s.queryMany(ctx,
			`select `+columnList("")+` from umkm where user_id = $1 order by created_at desc`,
			q.OwnerID)
	default:
		return nil, nil
	}
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]registry.Business, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.Business
	for rows.Next() {
		rec, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, rec registry.Business) (registry.Business, error) {
	row := s.db.QueryRowContext(ctx,
		`insert into umkm (
			nama_usaha, pemilik, nik_pemilik, no_hp, alamat_usaha, jenis_usaha,
			kategori_usaha, deskripsi_usaha, produk, kapasitas_produksi,
			satuan_produksi, periode_operasi, satuan_periode, hari_kerja_per_minggu,
			total_produksi, rab, biaya_tetap, biaya_variabel, modal_awal,
			target_pendapatan, jumlah_karyawan, status, tanggal_daftar, user_id
		) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		returning `+columnList(""),
		rec.Name, rec.OwnerName, nullString(rec.NationalID), nullString(rec.Phone),
		nullString(rec.Address), rec.Category, nullString(rec.SubCategory),
		nullString(rec.Description), nullString(rec.Product), rec.ProductionCapacity,
		nullString(rec.ProductionUnit), rec.OperatingPeriod, nullString(rec.PeriodUnit),
		rec.WorkDaysPerWeek, rec.TotalProduction, rec.BudgetPlan, rec.FixedCost,
		rec.VariableCost, rec.InitialCapital, rec.RevenueTarget, rec.EmployeeCount,
		string(rec.Status), rec.RegisteredAt, rec.OwnerID,
	)
	return scanBusiness(row)
}

// Update encodes both scoping predicates in the statement itself; zero rows
// back means the record does not exist for this owner.
func (s *Store) Update(ctx context.Context, id string, rec registry.Business, ownerID string) (registry.Business, error) {
	row := s.db.QueryRowContext(ctx,
		`update umkm set
			nama_usaha = $1, pemilik = $2, nik_pemilik = $3, no_hp = $4,
			alamat_usaha = $5, jenis_usaha = $6, kategori_usaha = $7,
			deskripsi_usaha = $8, produk = $9, kapasitas_produksi = $10,
			satuan_produksi = $11, periode_operasi = $12, satuan_periode = $13,
			hari_kerja_per_minggu = $14, total_produksi = $15, rab = $16,
			biaya_tetap = $17, biaya_variabel = $18, modal_awal = $19,
			target_pendapatan = $20, jumlah_karyawan = $21, status = $22,
			updated_at = now()
		 where id = $23 and user_id = $24
		 returning `+columnList(""),
		rec.Name, rec.OwnerName, nullString(rec.NationalID), nullString(rec.Phone),
		nullString(rec.Address), rec.Category, nullString(rec.SubCategory),
		nullString(rec.Description), nullString(rec.Product), rec.ProductionCapacity,
		nullString(rec.ProductionUnit), rec.OperatingPeriod, nullString(rec.PeriodUnit),
		rec.WorkDaysPerWeek, rec.TotalProduction, rec.BudgetPlan, rec.FixedCost,
		rec.VariableCost, rec.InitialCapital, rec.RevenueTarget, rec.EmployeeCount,
		string(rec.Status), id, ownerID,
	)
	updated, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Business{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Business{}, err
	}
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`delete from umkm where id = $1 and user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id, ownerID string) (registry.Business, error) {
	var row *sql.Row
	if ownerID != "" {
		row = s.db.QueryRowContext(ctx,
			`select `+columnList("")+` from umkm where id = $1 and user_id = $2`, id, ownerID)
	} else {
		row = s.db.QueryRowContext(ctx,
			`select `+columnList("")+` from umkm where id = $1`, id)
	}
	rec, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Business{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Business{}, err
	}
	return rec, nil
}

// EnsureOwner upserts the owner's identity row. Conflicts are ignored on
// purpose: the row may already exist from an earlier session or device.
func (s *Store) EnsureOwner(ctx context.Context, owner identity.Owner) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users (id, username, name, role, rw)
		 values ($1, $2, $3, $4, $5)
		 on conflict (id) do nothing`,
		owner.ID, owner.Username, owner.Name, string(owner.Role), owner.Partition,
	)
	return err
}
