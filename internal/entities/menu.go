package entities

type MenuItem struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	Price     int64  `db:"price"`
	Available bool   `db:"available"`
}
