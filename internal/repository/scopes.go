package repository

import "gorm.io/gorm"

// paginate applies page/pageSize as offset and limit. A non-positive size
// returns every row.
func paginate(page, pageSize int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pageSize <= 0 {
			return db
		}
		if page <= 0 {
			page = 1
		}
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// newestFirst orders by creation time with the id as tie breaker so pages
// stay stable for rows created in the same instant.
func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC, id DESC")
}
