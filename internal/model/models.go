package model

// AllModels 需要建表的模型（按依赖顺序）
func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&Customer{},
		&Submission{},
		&SubmissionStep{},
		&SubmissionCustomer{},
		&Card{},
		&PortalToken{},
		&BuybackOffer{},
		&BuybackOfferItem{},
	}
}
