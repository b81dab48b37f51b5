package model

// Week model
//
// One trading week reviewed by the user, keyed by the Monday date, carrying
// free-form tags. Upserted by the review layer.
type Week struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	StartDate string    `json:"start_date" gorm:"omitempty; not null; default:''; type:varchar(10); uniqueindex;"` // YYYY-MM-DD
	EndDate   string    `json:"end_date" gorm:"omitempty; not null; default:''; type:varchar(10);"`
	Tags      GormArray `json:"tags" gorm:"omitempty;"`

	Model
}

// CalendarEntry model
//
// Table of contents for trades, one row per year/month that has at least one
// opened trade. Rebuilt as a whole by the toc app.
type CalendarEntry struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	Year  int `json:"year" gorm:"omitempty; not null; default:0; uniqueindex:idx_cal_year_month;"`
	Month int `json:"month" gorm:"omitempty; not null; default:0; uniqueindex:idx_cal_year_month;"`

	Model
}

func (CalendarEntry) TableName() string {
	return "trade_calendar"
}
