package store

import (
	"context"
	"time"

	"traderev/pkg/model"

	"gorm.io/gorm/clause"
)

const dayFmt = "2006-01-02"

// dayRange returns the [start, end) epoch millis window covering the day
func dayRange(day string) (start, end int64, err error) {
	t, err := time.ParseInLocation(dayFmt, day, time.UTC)
	if err != nil {
		return 0, 0, err
	}
	start = t.UnixMilli()
	end = t.AddDate(0, 0, 1).UnixMilli()
	return start, end, nil
}

// WeekRange returns the Monday and Saturday dates of the week containing day
func WeekRange(day string) (weekStart, weekEnd string, err error) {
	t, err := time.ParseInLocation(dayFmt, day, time.UTC)
	if err != nil {
		t, err = time.ParseInLocation("2006/01/02", day, time.UTC)
		if err != nil {
			return "", "", err
		}
	}

	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	start := t.AddDate(0, 0, -weekday)
	end := start.AddDate(0, 0, 5)

	return start.Format(dayFmt), end.Format(dayFmt), nil
}

// OpenedTradesByDay returns all trades opened on the given day
func (s *Store) OpenedTradesByDay(ctx context.Context, day string) (trades []model.Trade, err error) {
	start, end, err := dayRange(day)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Where("`opening_date` >= ? AND `opening_date` < ?", start, end).
		Order("`opening_date` asc").
		Find(&trades).Error
	if err != nil {
		return nil, storeErr(err)
	}

	return trades, nil
}

// ClosedTradesByRange returns trades closed between start and end, inclusive
func (s *Store) ClosedTradesByRange(ctx context.Context, start, end time.Time) (trades []model.Trade, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Where("`closing_date` <> 0 AND `closing_date` >= ? AND `closing_date` <= ?",
			start.UnixMilli(), end.UnixMilli()).
		Order("`closing_date` asc").
		Find(&trades).Error
	if err != nil {
		return nil, storeErr(err)
	}

	return trades, nil
}

// RebuildTradeCalendar replaces the year/month table of contents with the
// months that currently have opened trades
func (s *Store) RebuildTradeCalendar(ctx context.Context) (entries []model.CalendarEntry, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var months []struct {
		Year  int
		Month int
	}
	err = s.db.WithContext(ctx).Raw(
		"SELECT DISTINCT YEAR(FROM_UNIXTIME(`opening_date`/1000)) AS `year`," +
			" MONTH(FROM_UNIXTIME(`opening_date`/1000)) AS `month`" +
			" FROM `trades` WHERE `opening_date` <> 0 ORDER BY `year`, `month`").
		Scan(&months).Error
	if err != nil {
		return nil, storeErr(err)
	}

	entries = make([]model.CalendarEntry, 0, len(months))
	for _, m := range months {
		entries = append(entries, model.CalendarEntry{Year: m.Year, Month: m.Month})
	}

	db := s.db.WithContext(ctx)
	err = db.Where("`id` > 0").Delete(&model.CalendarEntry{}).Error
	if err != nil {
		return nil, storeErr(err)
	}
	if len(entries) > 0 {
		err = db.Create(&entries).Error
		if err != nil {
			return nil, storeErr(err)
		}
	}

	return entries, nil
}

// WeekByDate fetches one trading week by its start date
func (s *Store) WeekByDate(ctx context.Context, startDate string) (week *model.Week, err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var found model.Week
	err = s.db.WithContext(ctx).
		Where("`start_date` = ?", startDate).
		Limit(1).
		Find(&found).Error
	if err != nil {
		return nil, storeErr(err)
	}
	if found.ID == 0 {
		return nil, nil
	}

	return &found, nil
}

// UpsertWeek inserts or updates a trading week keyed by start date
func (s *Store) UpsertWeek(ctx context.Context, week model.Week) (err error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "start_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"end_date", "tags"}),
		}).
		Create(&week).Error
	if err != nil {
		return storeErr(err)
	}

	return nil
}

// DeleteWeekTag removes a single tag from a week
func (s *Store) DeleteWeekTag(ctx context.Context, startDate string, tag string) (err error) {
	week, err := s.WeekByDate(ctx, startDate)
	if err != nil {
		return err
	}
	if week == nil {
		return nil
	}

	tags := make(model.GormArray, 0, len(week.Tags))
	for _, t := range week.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	if len(tags) == len(week.Tags) {
		return nil
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	err = s.db.WithContext(ctx).
		Model(&model.Week{}).
		Where("`id` = ?", week.ID).
		Update("tags", tags).Error
	if err != nil {
		return storeErr(err)
	}

	return nil
}
