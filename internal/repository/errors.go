package repository

import "errors"

var (
	// ErrAmbassadorExists возвращается при повторной регистрации того же идентификатора.
	ErrAmbassadorExists = errors.New("ambassador already exists")
	// ErrAmbassadorNotFound возвращается, если амбассадор не найден.
	ErrAmbassadorNotFound = errors.New("ambassador not found")
	// ErrPromoCodeTaken возвращается, если промокод уже принадлежит другому амбассадору.
	ErrPromoCodeTaken = errors.New("promo code already taken")
	// ErrPayoutNotFound возвращается, если заявка на вывод не найдена.
	ErrPayoutNotFound = errors.New("payout request not found")
	// ErrPayoutNotPending возвращается при попытке повторно обработать заявку.
	ErrPayoutNotPending = errors.New("payout request already processed")
	// ErrInsufficientBalance возвращается, если сумма превышает баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrBalanceOverflow возвращается для отрицательного начисления или если оно выводит
	// баланс или комиссию за пределы int64.
	ErrBalanceOverflow = errors.New("credit overflows balance")
	// ErrNotificationNotFound возвращается, если уведомление не найдено.
	ErrNotificationNotFound = errors.New("notification not found")
)
