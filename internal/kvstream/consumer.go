package kvstream

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metno/lard/internal/errs"
	"github.com/metno/lard/internal/models"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/bus"
	"github.com/metno/lard/pkg/log"
)

const tbtimeLayout = "2006-01-02 15:04:05"

// Writer drains decoded envelope leaves into flags.kvdata.
type Writer struct {
	pool *pgxpool.Pool
}

// New builds a Writer over pool.
func New(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// HandlePayload strips the XML prolog, decodes the envelope, and
// inserts a flags.kvdata row per leaf kvdata element, per §4.6. The
// envelope is decoded in one pass: a value that fails to decode anywhere
// in it (for example a non-numeric <original>) makes the whole payload a
// Parse-kind error and nothing from it is written. A leaf whose series
// cannot be found or whose insert fails is logged and skipped; a
// malformed obstime skips the whole obstime subtree.
func (w *Writer) HandlePayload(payload []byte) error {
	const op = "kvstream.HandlePayload"

	msg := strings.TrimSpace(string(payload))
	msg = strings.NewReplacer("\n", "", "\\", "").Replace(msg)

	if !strings.HasPrefix(msg, "<?xml") {
		return errs.E(op, errs.Parse, fmt.Errorf("payload must be xml starting with '<?xml'"))
	}
	end := strings.Index(msg, "?>")
	if end < 0 {
		return errs.E(op, errs.Parse, fmt.Errorf("couldn't find end of xml prolog '?>'"))
	}
	body := msg[end+2:]

	var env envelope
	if err := xml.Unmarshal([]byte(body), &env); err != nil {
		return errs.E(op, errs.Parse, err)
	}

	ctx := context.Background()
	for _, st := range env.Stations {
		for _, ty := range st.Typeids {
			for _, ot := range ty.Obstimes {
				obsTime, err := time.Parse(tbtimeLayout, ot.Val)
				if err != nil {
					log.Warnf("kvstream: skipping obstime subtree, bad timestamp %q: %v", ot.Val, err)
					continue
				}
				obsTime = obsTime.UTC()

				for _, tb := range ot.Tbtimes {
					for _, se := range tb.Sensors {
						for _, lv := range se.Levels {
							for _, kv := range lv.Kvdata {
								if err := w.insertOne(ctx, st.Val, ty.Val, se.Val.Value, lv.Val.Value, obsTime, kv); err != nil {
									log.Errorf("kvstream: %v", err)
								}
							}
						}
					}
				}
			}
		}
	}

	return nil
}

func (w *Writer) insertOne(ctx context.Context, stationID, typeID int32, sensor, level *int32, obstime time.Time, kv kvdata) error {
	const op = "kvstream.insertOne"

	id, err := storage.LookupMetSeries(ctx, w.pool, storage.MetKey{
		StationID: stationID,
		ParamID:   kv.Paramid,
		TypeID:    typeID,
		Lvl:       level,
		Sensor:    sensor,
	})
	if err != nil {
		return errs.E(op, errs.NotFound, fmt.Errorf("no timeseries for station %d param %d: %w", stationID, kv.Paramid, err))
	}

	return storage.InsertFlag(ctx, w.pool, models.FlagRecord{
		Timeseries:  id,
		Obstime:     obstime,
		Original:    kv.Original.Value,
		Corrected:   kv.Corrected.Value,
		Controlinfo: kv.Controlinfo.Value,
		Useinfo:     kv.Useinfo.Value,
		Cfailed:     kv.Cfailed.Value,
	})
}

// Run connects to the bus and drains it into flags.kvdata until ctx is
// cancelled.
func Run(ctx context.Context, cfg bus.Config, pool *pgxpool.Pool) error {
	consumer, err := bus.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer consumer.Close()

	w := New(pool)
	return consumer.Run(ctx, w.HandlePayload)
}
