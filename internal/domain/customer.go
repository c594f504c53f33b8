package domain

import "time"

type Customer struct {
	ID          int64
	Name        string
	FatherName  string
	Gender      string
	DateOfBirth time.Time
	Address     string
	Phone       string
	Profession  string
	Concession  string
}
