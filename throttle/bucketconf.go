package throttle

import "time"

type BucketConf struct {
	Burst     int           `json:"burst" validate:"min=1"`     // maximum number of tokens in the bucket
	Increment int           `json:"increment" validate:"min=1"` // how many tokens to add each period
	Period    time.Duration `json:"-"`                          // how often to add Increment
}
