package domain

import "time"

// Record is a flat field-to-value projection of a Trial, restricted to an
// experiment-declared field list. Fields absent on the trial map to nil
// rather than failing, so a store never rejects a trial for a missing
// optional annotation.
type Record map[string]any

// DefaultFields is the baseline field list every experiment stores. Concrete
// behaviors typically extend it.
var DefaultFields = []string{
	"session",
	"index",
	"time",
	"stimulus_name",
	"condition_name",
	"response",
	"correct",
	"rt",
	"reward",
	"max_wait",
}

// Project builds a Record from the trial over the given field list. Known
// field names map to trial attributes; anything else is looked up in the
// trial's annotations and left nil when absent.
func (t *Trial) Project(fields []string) Record {
	rec := make(Record, len(fields))
	for _, field := range fields {
		rec[field] = t.field(field)
	}
	return rec
}

func (t *Trial) field(name string) any {
	switch name {
	case "session":
		return t.Session
	case "index":
		return t.Index
	case "block":
		return t.BlockIndex
	case "time":
		if t.Time.IsZero() {
			return nil
		}
		return t.Time.Format(time.RFC3339Nano)
	case "stimulus_name":
		if t.Stimulus == "" {
			return nil
		}
		return t.Stimulus
	case "condition_name":
		return t.Condition.Name
	case "response":
		if !t.Responded {
			return false
		}
		return t.Response
	case "correct":
		if t.Correct == nil {
			return nil
		}
		return *t.Correct
	case "rt":
		if !t.Responded {
			return nil
		}
		return t.RT.Seconds()
	case "reward":
		return t.Reward
	case "punish":
		return t.Punish
	case "max_wait":
		if t.MaxWait <= 0 {
			return nil
		}
		return t.MaxWait.Seconds()
	default:
		if v, ok := t.Annotations[name]; ok {
			return v
		}
		return nil
	}
}
